package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Sweeper удаляет artifacts и выходные файлы после каждого запуска.
//
// Очистка безусловная: выполняется и после успеха, и после неудачи.
// Поэтому результаты успешного запуска удаляются сразу же — потребитель
// должен забрать их во время выполнения stages или через архив.
type Sweeper struct {
	workDir    string
	extensions []string
	logger     *slog.Logger
}

// NewSweeper создаёт Sweeper для рабочей директории и набора расширений.
func NewSweeper(workDir string, extensions []string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}

	exts := make([]string, len(extensions))
	for i, ext := range extensions {
		exts[i] = strings.ToLower(ext)
	}

	return &Sweeper{workDir: workDir, extensions: exts, logger: logger}
}

// Sweep удаляет paths (отсутствие файла — не ошибка), затем все файлы
// верхнего уровня workDir с отслеживаемыми расширениями.
//
// Ошибки удаления не прерывают очистку: они собираются и возвращаются вместе.
// Повторный вызов безопасен.
func (s *Sweeper) Sweep(paths []string) error {
	var errs []error

	for _, p := range paths {
		if err := s.remove(p); err != nil {
			errs = append(errs, err)
		}
	}

	entries, err := os.ReadDir(s.workDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("scan %s: %w", s.workDir, err))
		}
		return joinCleanup(errs)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() || !s.tracked(entry.Name()) {
			continue
		}
		if err := s.remove(filepath.Join(s.workDir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}

	return joinCleanup(errs)
}

// remove удаляет файл, если он существует.
func (s *Sweeper) remove(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		s.logger.Error("failed to delete file", "path", path, "error", err)
		return fmt.Errorf("delete %s: %w", path, err)
	}

	telemetry.SweptFilesTotal.Inc()
	s.logger.Info("deleted file", "path", path)
	return nil
}

// tracked проверяет расширение файла без учёта регистра.
func (s *Sweeper) tracked(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range s.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func joinCleanup(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCleanup, errors.Join(errs...))
}

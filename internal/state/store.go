package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Store — персистентное хранилище маркера состояния.
//
// Хранится ровно одно значение: Save перезаписывает его целиком.
// Отсутствие значения трактуется как NOT_STARTED.
type Store interface {
	Load(ctx context.Context) (domain.RunState, error)
	Save(ctx context.Context, s domain.RunState) error
}

// FileStore хранит литерал состояния в текстовом файле.
//
// Запись — обычная перезапись без rename и блокировок: маркер
// принадлежит одному процессу, конкурентный доступ сериализует Tracker.
type FileStore struct {
	path string
}

// NewFileStore создаёт FileStore для указанного файла.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path возвращает путь к файлу маркера.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (domain.RunState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.RunStateNotStarted, nil
		}
		return domain.RunStateNotStarted, fmt.Errorf("read state file: %w", err)
	}
	return domain.ParseRunState(strings.TrimSpace(string(data))), nil
}

func (s *FileStore) Save(_ context.Context, st domain.RunState) error {
	if err := os.WriteFile(s.path, []byte(st), 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// MemoryStore хранит состояние в памяти процесса.
type MemoryStore struct {
	mu    sync.Mutex
	state domain.RunState
	saves int
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: domain.RunStateNotStarted}
}

func (s *MemoryStore) Load(_ context.Context) (domain.RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *MemoryStore) Save(_ context.Context, st domain.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.saves++
	return nil
}

// Saves возвращает количество записей (для тестов).
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

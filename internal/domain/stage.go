package domain

import (
	"strings"
	"time"
)

// Stage — один внешний исполняемый шаг pipeline.
//
// Список stages фиксирован при старте процесса и выполняется строго
// в заданном порядке: каждый stage читает результат предыдущего
// из общей рабочей директории.
type Stage struct {
	// Name — имя stage для логов и метрик (например, "extract").
	Name string `json:"name" yaml:"name"`

	// Command — argv процесса: Command[0] — исполняемый файл,
	// остальное — аргументы (например, ["python3", "extract.py"]).
	Command []string `json:"command" yaml:"command"`

	// Timeout — ограничение времени выполнения stage.
	// 0 — используется таймаут по умолчанию из конфигурации.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// Executable возвращает исполняемый файл stage или пустую строку.
func (s Stage) Executable() string {
	if len(s.Command) == 0 {
		return ""
	}
	return s.Command[0]
}

// Args возвращает аргументы командной строки без исполняемого файла.
func (s Stage) Args() []string {
	if len(s.Command) < 2 {
		return nil
	}
	return s.Command[1:]
}

// DisplayName возвращает Name, а если оно не задано — командную строку.
func (s Stage) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return strings.Join(s.Command, " ")
}

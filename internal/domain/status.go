package domain

// RunState — состояние последнего fire-and-forget запуска.
//
// Жизненный цикл:
//
//	NOT_STARTED → RUNNING → COMPLETED
//	                      ↘ FAILED
//	(новый trigger из COMPLETED/FAILED снова проходит через NOT_STARTED)
//
// Значения совпадают с литералами, которые хранятся в маркере состояния
// (status.txt или строка в БД), поэтому их нельзя менять.
type RunState string

const (
	// RunStateNotStarted — запусков ещё не было (или маркер сброшен).
	RunStateNotStarted RunState = "Sync not started"

	// RunStateRunning — pipeline выполняется в фоне.
	RunStateRunning RunState = "Sync running"

	// RunStateCompleted — все stages прошли и artifacts на месте.
	RunStateCompleted RunState = "Sync completed"

	// RunStateFailed — stage упал, artifacts не появились или произошла внутренняя ошибка.
	RunStateFailed RunState = "Sync failed"
)

// AllRunStates перечисляет состояния в порядке жизненного цикла.
var AllRunStates = []RunState{
	RunStateNotStarted,
	RunStateRunning,
	RunStateCompleted,
	RunStateFailed,
}

// IsTerminal возвращает true, если запуск завершён.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление RunState.
func (s RunState) String() string {
	return string(s)
}

// ParseRunState парсит литерал маркера в RunState.
// Пустая строка и неизвестные значения трактуются как NOT_STARTED.
func ParseRunState(s string) RunState {
	switch RunState(s) {
	case RunStateRunning:
		return RunStateRunning
	case RunStateCompleted:
		return RunStateCompleted
	case RunStateFailed:
		return RunStateFailed
	default:
		return RunStateNotStarted
	}
}

// RunStateFromResult возвращает терминальное состояние для результата запуска.
func RunStateFromResult(success bool) RunState {
	if success {
		return RunStateCompleted
	}
	return RunStateFailed
}

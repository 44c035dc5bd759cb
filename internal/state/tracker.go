package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// storeTimeout ограничивает одну операцию со Store.
const storeTimeout = 5 * time.Second

// Snapshot — состояние для endpoint статуса.
type Snapshot struct {
	State      domain.RunState
	RunID      string
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Tracker — владелец маркера состояния.
//
// Значение в памяти авторитетно: ошибка записи в Store логируется,
// но не откатывает переход.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker создаёт Tracker и загружает текущее значение из store.
// Ошибка чтения логируется, состояние считается NOT_STARTED.
func NewTracker(ctx context.Context, store Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = NewMemoryStore()
	}

	t := &Tracker{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}

	loadCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	st, err := store.Load(loadCtx)
	if err != nil {
		logger.Error("failed to load run state", "error", err)
		st = domain.RunStateNotStarted
	}
	t.snap.State = st
	telemetry.ObserveRunState(st)

	return t
}

// Status возвращает текущее состояние.
func (t *Tracker) Status() domain.RunState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.State
}

// Snapshot возвращает копию текущего состояния.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Reset принудительно записывает NOT_STARTED.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap = Snapshot{State: domain.RunStateNotStarted}
	t.persist(domain.RunStateNotStarted)
}

// Begin записывает RUNNING безусловно, даже если запуск уже идёт.
func (t *Tracker) Begin(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.snap = Snapshot{
		State:     domain.RunStateRunning,
		RunID:     runID,
		StartedAt: &now,
	}
	t.persist(domain.RunStateRunning)
}

// Finish записывает COMPLETED при success, иначе FAILED.
func (t *Tracker) Finish(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.snap.State = domain.RunStateFromResult(success)
	t.snap.FinishedAt = &now
	t.persist(t.snap.State)
}

// BeginIfIdle атомарно проверяет, что запуск не идёт, и начинает новый:
// из терминального состояния сначала пишется NOT_STARTED, затем RUNNING.
// Если состояние RUNNING, возвращает текущий снимок и false.
func (t *Tracker) BeginIfIdle(runID string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.State == domain.RunStateRunning {
		return t.snap, false
	}

	if t.snap.State.IsTerminal() {
		t.snap = Snapshot{State: domain.RunStateNotStarted}
		t.persist(domain.RunStateNotStarted)
	}

	now := t.now()
	t.snap = Snapshot{
		State:     domain.RunStateRunning,
		RunID:     runID,
		StartedAt: &now,
	}
	t.persist(domain.RunStateRunning)
	return t.snap, true
}

// RecoverStale переписывает RUNNING, оставшийся от предыдущего процесса, в FAILED.
// Возвращает true, если переход был выполнен.
func (t *Tracker) RecoverStale() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.State != domain.RunStateRunning {
		return false
	}

	now := t.now()
	t.snap.State = domain.RunStateFailed
	t.snap.FinishedAt = &now
	t.persist(domain.RunStateFailed)
	return true
}

// persist пишет состояние в Store. Вызывается под t.mu.
func (t *Tracker) persist(st domain.RunState) {
	telemetry.ObserveRunState(st)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := t.store.Save(ctx, st); err != nil {
		t.logger.Error("failed to persist run state", "state", st, "error", err)
	}
}

package state

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
)

func TestTracker_Transitions(t *testing.T) {
	store := NewMemoryStore()
	tr := NewTracker(context.Background(), store, nil)

	if got := tr.Status(); got != domain.RunStateNotStarted {
		t.Fatalf("initial Status() = %q", got)
	}

	tr.Begin("run-1")
	if got := tr.Status(); got != domain.RunStateRunning {
		t.Fatalf("after Begin Status() = %q", got)
	}

	tr.Finish(true)
	snap := tr.Snapshot()
	if snap.State != domain.RunStateCompleted || snap.RunID != "run-1" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.StartedAt == nil || snap.FinishedAt == nil {
		t.Error("timestamps must be set after Finish")
	}

	tr.Reset()
	if got := tr.Status(); got != domain.RunStateNotStarted {
		t.Fatalf("after Reset Status() = %q", got)
	}

	tr.Begin("run-2")
	tr.Finish(false)
	if got, _ := store.Load(context.Background()); got != domain.RunStateFailed {
		t.Errorf("store = %q, want failed", got)
	}
}

func TestTracker_BeginWhileRunningOverwrites(t *testing.T) {
	store := NewMemoryStore()
	tr := NewTracker(context.Background(), store, nil)

	tr.Begin("a")
	before := store.Saves()
	tr.Begin("b")

	if tr.Status() != domain.RunStateRunning {
		t.Fatalf("Status() = %q", tr.Status())
	}
	if tr.Snapshot().RunID != "b" {
		t.Errorf("RunID = %q, want b", tr.Snapshot().RunID)
	}
	if store.Saves() != before+1 {
		t.Error("Begin must write through even when already running")
	}
}

func TestTracker_BeginIfIdle(t *testing.T) {
	store := NewMemoryStore()
	tr := NewTracker(context.Background(), store, nil)

	tr.Begin("first")
	tr.Finish(true)
	saves := store.Saves()

	snap, ok := tr.BeginIfIdle("second")
	if !ok || snap.RunID != "second" || snap.State != domain.RunStateRunning {
		t.Fatalf("BeginIfIdle() = %+v, %v", snap, ok)
	}
	// Из терминального состояния: NOT_STARTED, затем RUNNING
	if store.Saves() != saves+2 {
		t.Errorf("expected 2 writes, got %d", store.Saves()-saves)
	}

	snap, ok = tr.BeginIfIdle("third")
	if ok {
		t.Fatal("BeginIfIdle must refuse while running")
	}
	if snap.RunID != "second" {
		t.Errorf("running RunID = %q, want second", snap.RunID)
	}
}

func TestTracker_LoadsPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.txt")
	fs := NewFileStore(path)
	if err := fs.Save(context.Background(), domain.RunStateCompleted); err != nil {
		t.Fatal(err)
	}

	tr := NewTracker(context.Background(), fs, nil)
	if got := tr.Status(); got != domain.RunStateCompleted {
		t.Errorf("Status() = %q, want completed", got)
	}
}

func TestTracker_RecoverStale(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Save(context.Background(), domain.RunStateRunning)

	tr := NewTracker(context.Background(), store, nil)
	if !tr.RecoverStale() {
		t.Fatal("expected stale running state to be recovered")
	}
	if got, _ := store.Load(context.Background()); got != domain.RunStateFailed {
		t.Errorf("store = %q, want failed", got)
	}
	if tr.RecoverStale() {
		t.Error("second RecoverStale must be a no-op")
	}
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Save(context.Context, domain.RunState) error {
	return errors.New("disk full")
}

func TestTracker_StoreFailureKeepsMemoryValue(t *testing.T) {
	tr := NewTracker(context.Background(), &failingStore{}, nil)

	tr.Begin("x")
	if tr.Status() != domain.RunStateRunning {
		t.Errorf("Status() = %q, want running despite store error", tr.Status())
	}
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := NewTracker(context.Background(), NewMemoryStore(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.Begin("r")
			tr.Finish(true)
		}()
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()

	if !tr.Status().IsTerminal() {
		t.Errorf("final Status() = %q, want terminal", tr.Status())
	}
}

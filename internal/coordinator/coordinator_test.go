package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/notify"
	"github.com/shaiso/Conveyor/internal/pipeline"
	"github.com/shaiso/Conveyor/internal/state"
)

// fakePipeline блокируется до release (если gate задан) и считает
// одновременные запуски.
type fakePipeline struct {
	gate    chan struct{}
	succeed bool
	panics  bool
	err     error

	runs      atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	started   chan string

	// ctxErrs получает ctx.Err() запуска после gate, если задан.
	ctxErrs chan error
}

func newFakePipeline(succeed bool) *fakePipeline {
	return &fakePipeline{succeed: succeed, started: make(chan string, 16)}
}

func (f *fakePipeline) Run(ctx context.Context, runID string) (pipeline.Outcome, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	f.runs.Add(1)
	f.started <- runID

	if f.gate != nil {
		<-f.gate
	}
	if f.ctxErrs != nil {
		f.ctxErrs <- ctx.Err()
	}
	if f.panics {
		panic("stage exploded")
	}
	return pipeline.Outcome{RunID: runID, Succeeded: f.succeed}, f.err
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func newCoordinator(t *testing.T, p PipelineRunner, n notify.Notifier, overlap string) (*Coordinator, *state.Tracker) {
	t.Helper()
	tr := state.NewTracker(context.Background(), state.NewMemoryStore(), nil)
	c := New(Config{Pipeline: p, Tracker: tr, Notifier: n, Overlap: overlap})
	c.Start(context.Background())
	t.Cleanup(c.Stop)
	return c, tr
}

func TestTrigger_SuccessNotifies(t *testing.T) {
	p := newFakePipeline(true)
	n := &recordingNotifier{}
	c, tr := newCoordinator(t, p, n, "")

	ticket, err := c.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	if ticket.RunID == "" || ticket.Coalesced {
		t.Fatalf("ticket = %+v", ticket)
	}

	waitFor(t, "completed", func() bool { return tr.Status() == domain.RunStateCompleted })
	waitFor(t, "notification", func() bool { return n.count() == 1 })

	if n.got[0].RunID != ticket.RunID || n.got[0].Status != "Sync completed" {
		t.Errorf("notification = %+v", n.got[0])
	}
}

func TestTrigger_FailureSkipsNotification(t *testing.T) {
	p := newFakePipeline(false)
	n := &recordingNotifier{}
	c, tr := newCoordinator(t, p, n, "")

	if _, err := c.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	waitFor(t, "failed", func() bool { return tr.Status() == domain.RunStateFailed })

	if n.count() != 0 {
		t.Error("notifier must not be called for a failed run")
	}
}

func TestTrigger_NotificationErrorKeepsCompleted(t *testing.T) {
	p := newFakePipeline(true)
	n := &recordingNotifier{err: errors.New("downstream down")}
	c, tr := newCoordinator(t, p, n, "")

	if _, err := c.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	waitFor(t, "notification attempt", func() bool { return n.count() == 1 })

	if tr.Status() != domain.RunStateCompleted {
		t.Errorf("Status() = %q, want completed", tr.Status())
	}
}

// Два trigger подряд: оба без ошибки, итог терминальный.
func TestTrigger_OverlapCoalesce(t *testing.T) {
	p := newFakePipeline(true)
	p.gate = make(chan struct{})
	c, tr := newCoordinator(t, p, nil, OverlapCoalesce)

	first, err := c.Trigger(context.Background())
	if err != nil {
		t.Fatalf("first Trigger() err=%v", err)
	}
	<-p.started

	second, err := c.Trigger(context.Background())
	if err != nil {
		t.Fatalf("second Trigger() err=%v", err)
	}
	if !second.Coalesced || second.RunID != first.RunID {
		t.Errorf("second ticket = %+v, want coalesced into %s", second, first.RunID)
	}

	close(p.gate)
	waitFor(t, "terminal state", func() bool { return tr.Status().IsTerminal() })

	if got := p.runs.Load(); got != 1 {
		t.Errorf("pipeline runs = %d, want 1", got)
	}
}

func TestTrigger_OverlapReject(t *testing.T) {
	p := newFakePipeline(true)
	p.gate = make(chan struct{})
	c, tr := newCoordinator(t, p, nil, OverlapReject)

	if _, err := c.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	<-p.started

	_, err := c.Trigger(context.Background())
	if !errors.Is(err, ErrRunInProgress) {
		t.Errorf("err = %v, want ErrRunInProgress", err)
	}

	close(p.gate)
	waitFor(t, "completed", func() bool { return tr.Status() == domain.RunStateCompleted })
}

func TestTrigger_RestartAfterTerminal(t *testing.T) {
	p := newFakePipeline(true)
	c, tr := newCoordinator(t, p, nil, "")

	for i := 0; i < 3; i++ {
		ticket, err := c.Trigger(context.Background())
		if err != nil {
			t.Fatalf("Trigger() #%d err=%v", i, err)
		}
		<-p.started
		waitFor(t, "completed", func() bool {
			snap := tr.Snapshot()
			return snap.RunID == ticket.RunID && snap.State == domain.RunStateCompleted
		})
	}

	if got := p.runs.Load(); got != 3 {
		t.Errorf("pipeline runs = %d, want 3", got)
	}
}

func TestBackground_PanicMarksFailed(t *testing.T) {
	p := newFakePipeline(true)
	p.panics = true
	c, tr := newCoordinator(t, p, nil, "")

	if _, err := c.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	waitFor(t, "failed", func() bool { return tr.Status() == domain.RunStateFailed })

	// Горутина пережила панику и принимает новые запуски
	p.panics = false
	if _, err := c.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() after panic err=%v", err)
	}
	waitFor(t, "completed", func() bool { return tr.Status() == domain.RunStateCompleted })
}

func TestBackground_InternalErrorMarksFailed(t *testing.T) {
	p := newFakePipeline(true)
	p.err = pipeline.ErrCleanup
	c, tr := newCoordinator(t, p, nil, "")

	if _, err := c.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	waitFor(t, "failed", func() bool { return tr.Status() == domain.RunStateFailed })
}

func TestRunSync_DoesNotTouchState(t *testing.T) {
	p := newFakePipeline(true)
	c, tr := newCoordinator(t, p, nil, "")

	out, err := c.RunSync(context.Background())
	if err != nil || !out.Succeeded {
		t.Fatalf("RunSync() = %+v, %v", out, err)
	}
	if tr.Status() != domain.RunStateNotStarted {
		t.Errorf("Status() = %q, want not started", tr.Status())
	}
}

func TestRunSync_CallerCancelDoesNotAbortRun(t *testing.T) {
	p := newFakePipeline(true)
	p.gate = make(chan struct{})
	p.ctxErrs = make(chan error, 1)
	c, _ := newCoordinator(t, p, nil, "")

	ctx, cancel := context.WithCancel(context.Background())

	type result struct {
		out pipeline.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := c.RunSync(ctx)
		done <- result{out, err}
	}()

	<-p.started
	cancel()
	close(p.gate)

	if err := <-p.ctxErrs; err != nil {
		t.Errorf("pipeline ctx.Err() = %v, want nil after caller cancel", err)
	}
	res := <-done
	if res.err != nil || !res.out.Succeeded {
		t.Errorf("RunSync() = %+v, %v, want success", res.out, res.err)
	}
}

func TestRunSync_Panic(t *testing.T) {
	p := newFakePipeline(true)
	p.panics = true
	c, _ := newCoordinator(t, p, nil, "")

	_, err := c.RunSync(context.Background())
	if !errors.Is(err, ErrPanic) {
		t.Errorf("err = %v, want ErrPanic", err)
	}
}

func TestRunSync_SerializedWithBackground(t *testing.T) {
	p := newFakePipeline(true)
	p.gate = make(chan struct{})
	c, tr := newCoordinator(t, p, nil, "")

	if _, err := c.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	<-p.started

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.RunSync(context.Background())
	}()

	// Sync ждёт execution lock и не стартует, пока фоновый запуск идёт
	select {
	case <-p.started:
		t.Fatal("sync run started while background run was active")
	case <-time.After(50 * time.Millisecond):
	}

	close(p.gate)
	<-done
	waitFor(t, "completed", func() bool { return tr.Status() == domain.RunStateCompleted })

	if got := p.maxActive.Load(); got != 1 {
		t.Errorf("max concurrent runs = %d, want 1", got)
	}
}

func TestNew_RecoversStaleRunning(t *testing.T) {
	store := state.NewMemoryStore()
	_ = store.Save(context.Background(), domain.RunStateRunning)
	tr := state.NewTracker(context.Background(), store, nil)

	New(Config{Pipeline: newFakePipeline(true), Tracker: tr})

	if tr.Status() != domain.RunStateFailed {
		t.Errorf("Status() = %q, want failed", tr.Status())
	}
}

func TestStop_AbandonsQueuedRun(t *testing.T) {
	tr := state.NewTracker(context.Background(), state.NewMemoryStore(), nil)
	c := New(Config{Pipeline: newFakePipeline(true), Tracker: tr})

	// Без Start run остаётся в очереди
	if _, err := c.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	c.Stop()

	if tr.Status() != domain.RunStateFailed {
		t.Errorf("Status() = %q, want failed", tr.Status())
	}
	if _, err := c.Trigger(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Trigger() after Stop err=%v, want ErrStopped", err)
	}
}

func TestTrigger_AfterStopLeavesStateTerminal(t *testing.T) {
	p := newFakePipeline(true)
	tr := state.NewTracker(context.Background(), state.NewMemoryStore(), nil)
	c := New(Config{Pipeline: p, Tracker: tr})
	c.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Trigger(context.Background())
		}()
	}
	c.Stop()
	wg.Wait()

	// Ни один trigger, принятый до или после Stop, не оставляет RUNNING
	if got := tr.Status(); got == domain.RunStateRunning {
		t.Errorf("Status() = %q after Stop, want a non-running state", got)
	}
	if _, err := c.Trigger(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Trigger() after Stop err=%v, want ErrStopped", err)
	}
}

func TestTriggerScheduled(t *testing.T) {
	p := newFakePipeline(true)
	p.gate = make(chan struct{})
	c, _ := newCoordinator(t, p, nil, "")

	id, coalesced, err := c.TriggerScheduled(context.Background())
	if err != nil || id == "" || coalesced {
		t.Fatalf("TriggerScheduled() = %q, %v, %v", id, coalesced, err)
	}
	<-p.started

	id2, coalesced, err := c.TriggerScheduled(context.Background())
	if err != nil || id2 != id || !coalesced {
		t.Errorf("second TriggerScheduled() = %q, %v, %v", id2, coalesced, err)
	}
	close(p.gate)
}

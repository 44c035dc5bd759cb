package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/notify"
	"github.com/shaiso/Conveyor/internal/pipeline"
	"github.com/shaiso/Conveyor/internal/render"
	"github.com/shaiso/Conveyor/internal/state"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Политики при trigger во время выполнения.
const (
	OverlapCoalesce = "coalesce"
	OverlapReject   = "reject"
)

const notifyTimeout = 30 * time.Second

// PipelineRunner выполняет один запуск (реализуется pipeline.Pipeline).
type PipelineRunner interface {
	Run(ctx context.Context, runID string) (pipeline.Outcome, error)
}

// Ticket — ответ на trigger.
type Ticket struct {
	RunID string

	// Coalesced — trigger присоединён к уже идущему запуску.
	Coalesced bool
}

// Coordinator — владелец фоновых запусков и execution lock.
type Coordinator struct {
	pipeline PipelineRunner
	tracker  *state.Tracker
	notifier notify.Notifier
	payload  map[string]any
	workDir  string
	overlap  string

	queue  chan string
	execMu sync.Mutex

	logger *slog.Logger

	mu         sync.Mutex
	started    bool
	stopped    bool
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Coordinator.
type Config struct {
	Pipeline PipelineRunner
	Tracker  *state.Tracker

	// Notifier — опционально; вызывается после успешного фонового запуска.
	Notifier notify.Notifier

	// Payload — данные для уведомления (notify.payload); строки
	// рендерятся как шаблоны (см. пакет render).
	Payload map[string]any

	// WorkDir — значение {{ .WorkDir }} в payload.
	WorkDir string

	// Overlap — coalesce (default) или reject.
	Overlap string

	Logger *slog.Logger
}

// New создаёт Coordinator.
//
// RUNNING, оставшийся от предыдущего процесса, переписывается в FAILED:
// ни одна горутина этого процесса им не владеет.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	overlap := cfg.Overlap
	if overlap != OverlapReject {
		overlap = OverlapCoalesce
	}

	c := &Coordinator{
		pipeline: cfg.Pipeline,
		tracker:  cfg.Tracker,
		notifier: cfg.Notifier,
		payload:  cfg.Payload,
		workDir:  cfg.WorkDir,
		overlap:  overlap,
		queue:    make(chan string, 1),
		logger:   logger,
	}

	if c.tracker.RecoverStale() {
		logger.Warn("stale running state from previous process marked as failed")
	}

	return c
}

// Start запускает горутину фоновых запусков.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started || c.stopped {
		return
	}
	c.started = true

	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(ctx)
	}()

	c.logger.Info("coordinator started", "overlap", c.overlap)
}

// Stop отменяет текущий запуск (процесс stage будет убит) и ждёт
// завершения горутины. Запуск, оставшийся в очереди, помечается FAILED.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel := c.cancelFunc
	c.mu.Unlock()

	c.logger.Info("stopping coordinator...")

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	select {
	case runID := <-c.queue:
		c.logger.Warn("queued run abandoned on shutdown", "run_id", runID)
		c.tracker.Finish(false)
	default:
	}

	c.logger.Info("coordinator stopped")
}

// Trigger начинает фоновый запуск и сразу возвращает Ticket.
func (c *Coordinator) Trigger(ctx context.Context) (Ticket, error) {
	if err := ctx.Err(); err != nil {
		return Ticket{}, err
	}

	// Проверка stopped и постановка в очередь под одним c.mu: Stop
	// не может проскочить между ними и пропустить запуск при очистке очереди.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return Ticket{}, ErrStopped
	}

	runID := uuid.New().String()

	snap, ok := c.tracker.BeginIfIdle(runID)
	if !ok {
		if c.overlap == OverlapReject {
			return Ticket{}, fmt.Errorf("%w: %s", ErrRunInProgress, snap.RunID)
		}
		c.logger.Info("trigger coalesced into running run", "run_id", snap.RunID)
		return Ticket{RunID: snap.RunID, Coalesced: true}, nil
	}

	select {
	case c.queue <- runID:
	default:
		c.tracker.Finish(false)
		return Ticket{}, ErrQueueFull
	}

	c.logger.Info("background run queued", "run_id", runID)
	return Ticket{RunID: runID}, nil
}

// TriggerScheduled — Trigger для планировщика.
func (c *Coordinator) TriggerScheduled(ctx context.Context) (string, bool, error) {
	t, err := c.Trigger(ctx)
	if err != nil {
		return "", false, err
	}
	return t.RunID, t.Coalesced, nil
}

// RunSync выполняет запуск в режиме запрос/ответ. Run State не меняется.
//
// Начатый запуск не прерывается отменой ctx (клиент отключился, прокси
// оборвал запрос): единственная граница — таймаут stage.
func (c *Coordinator) RunSync(ctx context.Context) (pipeline.Outcome, error) {
	runID := uuid.New().String()
	logger := telemetry.WithRunID(c.logger, runID)
	ctx = telemetry.WithLogger(context.WithoutCancel(ctx), logger)

	logger.Info("sync run started")

	out, err := c.execute(ctx, runID)
	telemetry.RunsTotal.WithLabelValues(telemetry.ModeSync, telemetry.ResultLabel(err == nil && out.Succeeded)).Inc()

	if err != nil {
		logger.Error("sync run failed with internal error", "error", err)
	}
	return out, err
}

// Snapshot возвращает состояние фонового запуска.
func (c *Coordinator) Snapshot() state.Snapshot {
	return c.tracker.Snapshot()
}

// loop — горутина фоновых запусков.
func (c *Coordinator) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case runID := <-c.queue:
			c.runBackground(ctx, runID)
		}
	}
}

// runBackground выполняет один фоновый запуск и фиксирует итог.
func (c *Coordinator) runBackground(ctx context.Context, runID string) {
	logger := telemetry.WithRunID(c.logger, runID)
	ctx = telemetry.WithLogger(ctx, logger)

	logger.Info("background run started")

	out, err := c.execute(ctx, runID)
	success := err == nil && out.Succeeded
	if err != nil {
		logger.Error("background run failed with internal error", "error", err)
	}

	c.tracker.Finish(success)
	telemetry.RunsTotal.WithLabelValues(telemetry.ModeBackground, telemetry.ResultLabel(success)).Inc()

	logger.Info("background run finished",
		"success", success,
		"reason", out.Reason,
		"duration", out.Duration,
	)

	if success {
		c.notify(ctx, logger, runID)
	}
}

// execute выполняет pipeline под execution lock; паника превращается в ошибку.
func (c *Coordinator) execute(ctx context.Context, runID string) (out pipeline.Outcome, err error) {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			telemetry.FromContext(ctx).Error("pipeline panic", "panic", r, "stack", string(debug.Stack()))
			out = pipeline.Outcome{RunID: runID}
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return c.pipeline.Run(ctx, runID)
}

// notify отправляет уведомление; ошибка только логируется.
func (c *Coordinator) notify(ctx context.Context, logger *slog.Logger, runID string) {
	if c.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	now := time.Now().UTC()

	payload, err := render.Payload(c.payload, render.NewVars(runID, c.workDir, now))
	if err != nil {
		logger.Error("failed to render notification payload, sending it as is", "error", err)
		payload = c.payload
	}

	n := notify.Notification{
		RunID:      runID,
		Status:     domain.RunStateCompleted.String(),
		FinishedAt: now,
		Payload:    payload,
	}

	if err := c.notifier.Notify(ctx, n); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("notification cancelled", "error", err)
			return
		}
		logger.Error("downstream notification failed", "error", err)
		return
	}
	logger.Info("downstream notified")
}

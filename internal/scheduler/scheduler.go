package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger — то, что запускает pipeline (реализуется coordinator.Coordinator).
type Trigger interface {
	// TriggerScheduled ставит запуск в очередь.
	// coalesced=true означает, что запуск уже выполнялся и новый не создан.
	TriggerScheduled(ctx context.Context) (runID string, coalesced bool, err error)
}

// Scheduler — периодический запуск pipeline по cron.
type Scheduler struct {
	schedule cron.Schedule
	expr     string
	trigger  Trigger
	logger   *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	CronExpr string
	Trigger  Trigger
	Logger   *slog.Logger
}

// New создаёт Scheduler. Возвращает ошибку для невалидного cron-выражения.
func New(cfg Config) (*Scheduler, error) {
	schedule, err := cronParser.Parse(cfg.CronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.CronExpr, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedule: schedule,
		expr:     cfg.CronExpr,
		trigger:  cfg.Trigger,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Run ждёт наступления очередного времени и вызывает Trigger.
// Блокируется до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "cron", s.expr)

	for {
		next := s.schedule.Next(s.now())
		wait := time.Until(next)

		s.logger.Debug("next scheduled run", "at", next.UTC().Format(time.RFC3339), "in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return
		case <-timer.C:
			s.Tick(ctx)
		}
	}
}

// Tick выполняет один запуск по расписанию.
func (s *Scheduler) Tick(ctx context.Context) {
	runID, coalesced, err := s.trigger.TriggerScheduled(ctx)
	if err != nil {
		s.logger.Warn("scheduled trigger rejected", "error", err)
		return
	}

	if coalesced {
		s.logger.Debug("scheduled trigger coalesced with running run", "run_id", runID)
		return
	}

	s.logger.Info("scheduled run started", "run_id", runID)
}

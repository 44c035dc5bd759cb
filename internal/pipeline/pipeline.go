package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/render"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Reason — причина неуспешного запуска.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonStageFailed      Reason = "stage_failed"
	ReasonArtifactsMissing Reason = "artifacts_missing"
	ReasonArchiveFailed    Reason = "archive_failed"
)

// Outcome — итог одного запуска.
type Outcome struct {
	RunID     string
	Succeeded bool
	Reason    Reason

	// FailedStage — имя stage, на котором pipeline остановился.
	FailedStage string

	// Missing — artifacts, которых не оказалось после всех попыток.
	Missing []string

	Duration time.Duration
}

// Archiver сохраняет artifacts до очистки (реализуется archive.Archiver).
type Archiver interface {
	Archive(ctx context.Context, runID string, paths []string) error
}

// Pipeline — полный запуск: stages → verify → archive → sweep.
type Pipeline struct {
	stages    []domain.Stage
	artifacts []string
	policy    VerifyPolicy
	workDir   string

	runner   *Runner
	verifier *Verifier
	sweeper  *Sweeper
	archiver Archiver
	logger   *slog.Logger
}

// Config — конфигурация Pipeline.
type Config struct {
	// Stages — упорядоченный список stages.
	Stages []domain.Stage

	// Artifacts — абсолютные пути ожидаемых artifacts.
	Artifacts []string

	// Policy — политика проверки (default: 3 попытки / 2s).
	Policy VerifyPolicy

	// Executor — запуск stage (обычно stage.Executor).
	Executor StageExecutor

	// WorkDir и CleanupExtensions — что сканировать при очистке.
	WorkDir           string
	CleanupExtensions []string

	// Archiver — опционально; nil отключает архив.
	Archiver Archiver

	Logger *slog.Logger
}

// New создаёт Pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.Policy
	if policy.MaxAttempts <= 0 {
		policy = DefaultVerifyPolicy()
	}

	return &Pipeline{
		stages:    cfg.Stages,
		artifacts: cfg.Artifacts,
		policy:    policy,
		workDir:   cfg.WorkDir,
		runner:    NewRunner(cfg.Executor, logger),
		verifier:  NewVerifier(logger),
		sweeper:   NewSweeper(cfg.WorkDir, cfg.CleanupExtensions, logger),
		archiver:  cfg.Archiver,
		logger:    logger,
	}
}

// Run выполняет один запуск.
//
// Очистка выполняется ровно один раз в любом случае, в том числе при панике.
// Неуспех stage или проверки возвращается в Outcome; error — только
// для непредвиденных сбоев (ErrCleanup).
func (p *Pipeline) Run(ctx context.Context, runID string) (out Outcome, err error) {
	logger := loggerFrom(ctx, p.logger)
	start := time.Now()
	out.RunID = runID

	defer func() {
		if sweepErr := p.sweeper.Sweep(p.artifacts); sweepErr != nil {
			logger.Error("cleanup failed", "error", sweepErr)
			err = errors.Join(err, sweepErr)
		}
		out.Duration = time.Since(start)
	}()

	stages, err := p.renderStages(render.NewVars(runID, p.workDir, start))
	if err != nil {
		var re *renderError
		if errors.As(err, &re) {
			out.FailedStage = re.stage
		}
		out.Reason = ReasonStageFailed
		logger.Error("pipeline failed", "reason", out.Reason, "error", err)
		return out, nil
	}

	ok, failed := p.runner.RunDetailed(ctx, stages)
	if !ok {
		out.Reason = ReasonStageFailed
		out.FailedStage = failed
		logger.Warn("pipeline failed", "reason", out.Reason, "failed_stage", failed)
		return out, nil
	}

	out.Missing = p.verifier.VerifyMissing(ctx, p.artifacts, p.policy)
	if len(out.Missing) > 0 {
		out.Reason = ReasonArtifactsMissing
		logger.Warn("pipeline failed", "reason", out.Reason, "missing", out.Missing)
		return out, nil
	}

	if p.archiver != nil {
		if archErr := p.archiver.Archive(ctx, runID, p.artifacts); archErr != nil {
			out.Reason = ReasonArchiveFailed
			logger.Error("pipeline failed", "reason", out.Reason, "error", fmt.Errorf("%w: %w", ErrArchive, archErr))
			return out, nil
		}
	}

	out.Succeeded = true
	logger.Info("all stages ran successfully and all expected artifacts are present",
		"stages", len(p.stages),
		"artifacts", len(p.artifacts),
	)
	return out, nil
}

// renderError — не удалось подставить переменные в команду stage.
type renderError struct {
	stage string
	err   error
}

func (e *renderError) Error() string {
	return fmt.Sprintf("render stage %s: %v", e.stage, e.err)
}

func (e *renderError) Unwrap() error {
	return e.err
}

// renderStages подставляет переменные запуска в команды stages.
func (p *Pipeline) renderStages(vars render.Vars) ([]domain.Stage, error) {
	out := make([]domain.Stage, len(p.stages))
	for i, s := range p.stages {
		cmd, err := render.Args(s.Command, vars)
		if err != nil {
			return nil, &renderError{stage: s.DisplayName(), err: err}
		}
		s.Command = cmd
		out[i] = s
	}
	return out, nil
}

// Stages возвращает список stages.
func (p *Pipeline) Stages() []domain.Stage {
	return p.stages
}

// loggerFrom берёт логгер запуска из контекста или fallback.
func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(telemetry.CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return fallback
}

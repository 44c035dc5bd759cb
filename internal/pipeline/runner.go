package pipeline

import (
	"context"
	"log/slog"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/stage"
)

// StageExecutor — запуск одного stage (реализуется stage.Executor).
type StageExecutor interface {
	Execute(ctx context.Context, s domain.Stage) stage.Result
}

// Runner выполняет stages строго по порядку.
//
// Runner не проверяет artifacts: код выхода 0 означает только
// "процесс завершился", а не "результат на диске".
type Runner struct {
	executor StageExecutor
	logger   *slog.Logger
}

// NewRunner создаёт Runner.
func NewRunner(executor StageExecutor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{executor: executor, logger: logger}
}

// Run выполняет stages и возвращает true, если все завершились успешно.
// Пустой список — успех.
func (r *Runner) Run(ctx context.Context, stages []domain.Stage) bool {
	ok, _ := r.RunDetailed(ctx, stages)
	return ok
}

// RunDetailed как Run, но дополнительно возвращает имя упавшего stage.
func (r *Runner) RunDetailed(ctx context.Context, stages []domain.Stage) (bool, string) {
	logger := loggerFrom(ctx, r.logger)

	for i, s := range stages {
		logger.Debug("stage starting", "index", i+1, "total", len(stages), "stage", s.DisplayName())

		result := r.executor.Execute(ctx, s)
		if !result.Succeeded {
			logger.Warn("aborting pipeline",
				"failed_stage", s.DisplayName(),
				"skipped", len(stages)-i-1,
			)
			return false, s.DisplayName()
		}
	}

	return true, ""
}

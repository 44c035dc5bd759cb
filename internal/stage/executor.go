package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Значения по умолчанию.
const (
	defaultTimeout        = 30 * time.Minute
	defaultMaxOutputBytes = 1 << 20

	// waitDelay — сколько ждать закрытия pipe после завершения процесса.
	waitDelay = 5 * time.Second
)

// Result — результат выполнения stage.
type Result struct {
	// Succeeded — процесс завершился с кодом 0.
	Succeeded bool

	// ExitCode — код выхода; -1, если процесс не стартовал или был убит.
	ExitCode int

	// Stdout, Stderr — захваченный вывод (не больше MaxOutputBytes каждый).
	Stdout string
	Stderr string

	// Truncated — часть вывода отброшена из-за лимита.
	Truncated bool

	// Duration — время выполнения.
	Duration time.Duration

	// Err — причина неуспеха, если процесс не стартовал или превысил таймаут.
	Err error
}

// Executor запускает stages как внешние процессы.
type Executor struct {
	workDir        string
	timeout        time.Duration
	maxOutputBytes int
	env            []string
	waitDelay      time.Duration
	logger         *slog.Logger
}

// Config — конфигурация Executor.
type Config struct {
	// WorkDir — рабочая директория процессов.
	WorkDir string

	// Timeout — таймаут stage по умолчанию (default: 30m).
	// Stage.Timeout имеет приоритет.
	Timeout time.Duration

	// MaxOutputBytes — лимит захвата stdout и stderr (default: 1 MiB).
	MaxOutputBytes int

	// Env — дополнительные переменные окружения (KEY=VALUE)
	// поверх окружения родительского процесса.
	Env []string

	Logger *slog.Logger
}

// NewExecutor создаёт Executor.
func NewExecutor(cfg Config) *Executor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxOutput := cfg.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = defaultMaxOutputBytes
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		workDir:        cfg.WorkDir,
		timeout:        timeout,
		maxOutputBytes: maxOutput,
		env:            cfg.Env,
		waitDelay:      waitDelay,
		logger:         logger,
	}
}

// Execute запускает stage и ждёт завершения процесса.
//
// Никогда не возвращает ошибку и не паникует из-за процесса: любой
// неуспех (ненулевой код, ошибка запуска, таймаут) — Succeeded=false.
func (e *Executor) Execute(ctx context.Context, s domain.Stage) Result {
	logger := telemetry.WithStage(e.loggerFrom(ctx), s.DisplayName())
	start := time.Now()

	result := e.run(ctx, s)
	result.Duration = time.Since(start)

	telemetry.StageDuration.
		WithLabelValues(s.DisplayName(), telemetry.ResultLabel(result.Succeeded)).
		Observe(result.Duration.Seconds())

	if result.Succeeded {
		logger.Info("stage completed",
			"duration", result.Duration,
			"truncated", result.Truncated,
			"stdout", result.Stdout,
		)
		return result
	}

	attrs := []any{
		"exit_code", result.ExitCode,
		"duration", result.Duration,
		"truncated", result.Truncated,
		"stderr", result.Stderr,
	}
	if result.Err != nil {
		attrs = append(attrs, "error", result.Err)
	}
	logger.Error("stage failed", attrs...)

	return result
}

// run выполняет процесс и заполняет Result без учёта длительности.
func (e *Executor) run(ctx context.Context, s domain.Stage) Result {
	if s.Executable() == "" {
		return Result{ExitCode: -1, Err: ErrEmptyCommand}
	}

	timeout := e.timeout
	if s.Timeout > 0 {
		timeout = s.Timeout
	}

	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(stageCtx, s.Executable(), s.Args()...)
	cmd.Dir = e.workDir
	cmd.WaitDelay = e.waitDelay
	if len(e.env) > 0 {
		cmd.Env = append(cmd.Environ(), e.env...)
	}
	isolate(cmd)

	stdout := newBoundedBuffer(e.maxOutputBytes)
	stderr := newBoundedBuffer(e.maxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	e.loggerFrom(ctx).Info("running stage",
		"stage", s.DisplayName(),
		"command", cmd.String(),
		"timeout", timeout,
	)

	err := cmd.Run()

	result := Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.truncated || stderr.truncated,
	}

	if err == nil {
		result.Succeeded = true
		return result
	}

	// Таймаут проверяем первым: убитый процесс тоже даёт ExitError
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		result.ExitCode = -1
		result.Err = fmt.Errorf("%w after %s", ErrTimeout, timeout)
		return result
	}
	if errors.Is(stageCtx.Err(), context.Canceled) {
		result.ExitCode = -1
		result.Err = fmt.Errorf("stage cancelled: %w", context.Canceled)
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		result.Err = fmt.Errorf("exit code %d", result.ExitCode)
		return result
	}

	// Процесс завершился, но потомок в фоне держит stdout/stderr.
	// Итог определяет код выхода самого stage; потомков добиваем.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		killGroup(cmd)
		result.ExitCode = cmd.ProcessState.ExitCode()
		if cmd.ProcessState.Success() {
			e.loggerFrom(ctx).Warn("stage left background processes holding its output, killed them",
				"stage", s.DisplayName(),
			)
			result.Succeeded = true
			return result
		}
		result.Err = fmt.Errorf("exit code %d: %w", result.ExitCode, err)
		return result
	}

	result.ExitCode = -1
	if cmd.Process == nil {
		// Процесс не стартовал: нет файла, нет прав и т.п.
		result.Err = fmt.Errorf("start %s: %w", s.Executable(), err)
		return result
	}
	result.Err = fmt.Errorf("wait %s: %w", s.Executable(), err)
	return result
}

// loggerFrom берёт логгер запуска из контекста, если он там есть.
func (e *Executor) loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(telemetry.CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return e.logger
}

package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Политика проверки по умолчанию.
const (
	DefaultVerifyAttempts = 3
	DefaultVerifyDelay    = 2 * time.Second
)

// VerifyPolicy — сколько раз и с какой паузой проверять artifacts.
//
// Это эвристическое окно ожидания для файлов, которые появляются
// асинхронно относительно завершения процесса, а не гарантия
// корректности: на границе окна возможны ложные результаты.
type VerifyPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultVerifyPolicy возвращает политику 3 попытки / 2 секунды.
func DefaultVerifyPolicy() VerifyPolicy {
	return VerifyPolicy{MaxAttempts: DefaultVerifyAttempts, Delay: DefaultVerifyDelay}
}

// Verifier проверяет наличие ожидаемых artifacts на диске.
type Verifier struct {
	logger *slog.Logger

	// wait — пауза между попытками; подменяется в тестах.
	wait func(ctx context.Context, d time.Duration) error
}

// NewVerifier создаёт Verifier.
func NewVerifier(logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{logger: logger, wait: sleepContext}
}

// Verify возвращает true, если все paths существуют к концу последней попытки.
func (v *Verifier) Verify(ctx context.Context, paths []string, policy VerifyPolicy) bool {
	return len(v.VerifyMissing(ctx, paths, policy)) == 0
}

// VerifyMissing возвращает пути, которых так и не оказалось на диске.
// Пустой результат — проверка прошла.
func (v *Verifier) VerifyMissing(ctx context.Context, paths []string, policy VerifyPolicy) []string {
	logger := loggerFrom(ctx, v.logger)

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var missing []string
	for attempt := 1; attempt <= attempts; attempt++ {
		missing = missingFiles(paths)
		if len(missing) == 0 {
			logger.Info("all expected artifacts are present", "count", len(paths), "attempt", attempt)
			return nil
		}

		telemetry.VerifyMissingTotal.Inc()
		logger.Warn("expected artifacts missing",
			"attempt", attempt,
			"max_attempts", attempts,
			"missing", missing,
		)

		// После последней попытки не ждём
		if attempt == attempts {
			break
		}

		if err := v.wait(ctx, policy.Delay); err != nil {
			logger.Warn("verification interrupted", "error", err)
			return missing
		}
	}

	return missing
}

// missingFiles возвращает пути, которые не являются существующими обычными файлами.
func missingFiles(paths []string) []string {
	var missing []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			missing = append(missing, p)
		}
	}
	return missing
}

// sleepContext ждёт d с учётом отмены ctx.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

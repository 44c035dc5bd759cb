package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conveyor/internal/api"
	"github.com/shaiso/Conveyor/internal/archive"
	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/coordinator"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/notify"
	"github.com/shaiso/Conveyor/internal/pipeline"
	"github.com/shaiso/Conveyor/internal/scheduler"
	"github.com/shaiso/Conveyor/internal/stage"
	"github.com/shaiso/Conveyor/internal/state"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-api")

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("conveyor-api failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"workdir", cfg.WorkDir,
		"stages", len(cfg.Stages),
		"artifacts", len(cfg.Artifacts),
		"state_backend", cfg.State.Backend,
		"overlap", cfg.Overlap,
	)

	// Хранилище маркера состояния
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	tracker := state.NewTracker(ctx, store, logger)

	// Архив artifacts (опционально)
	var archiver pipeline.Archiver
	if cfg.Archive.Enabled() {
		a, err := openArchive(ctx, cfg, logger)
		if err != nil {
			return err
		}
		archiver = a
	}

	// Уведомления downstream (опционально)
	notifier, closeNotifier, err := openNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	executor := stage.NewExecutor(stage.Config{
		WorkDir:        cfg.WorkDir,
		Timeout:        cfg.StageTimeout,
		MaxOutputBytes: cfg.MaxOutputBytes,
		Logger:         logger,
	})

	p := pipeline.New(pipeline.Config{
		Stages:    cfg.Stages,
		Artifacts: cfg.ArtifactPaths(),
		Policy: pipeline.VerifyPolicy{
			MaxAttempts: cfg.Verify.Attempts,
			Delay:       cfg.Verify.Delay,
		},
		Executor:          executor,
		WorkDir:           cfg.WorkDir,
		CleanupExtensions: cfg.CleanupExtensions,
		Archiver:          archiver,
		Logger:            logger,
	})

	coord := coordinator.New(coordinator.Config{
		Pipeline: p,
		Tracker:  tracker,
		Notifier: notifier,
		Payload:  cfg.Notify.Payload,
		WorkDir:  cfg.WorkDir,
		Overlap:  cfg.Overlap,
		Logger:   logger,
	})
	coord.Start(ctx)
	defer coord.Stop()

	// Периодический запуск (опционально)
	if cfg.Schedule.Cron != "" {
		sched, err := scheduler.New(scheduler.Config{
			CronExpr: cfg.Schedule.Cron,
			Trigger:  coord,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		go sched.Run(ctx)
	}

	handler := api.NewHandler(api.Config{
		Coordinator: coord,
		ResultLink:  cfg.ResultLink,
		Logger:      logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}

// openStore выбирает backend маркера состояния.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (state.Store, func(), error) {
	switch cfg.State.Backend {
	case config.StateBackendPostgres:
		pool, err := state.NewPool(ctx, cfg.State.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		store := state.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("connected to database")
		return store, pool.Close, nil

	case config.StateBackendMemory:
		return state.NewMemoryStore(), func() {}, nil

	default:
		path := cfg.StatePath()
		logger.Info("using state file", "path", path)
		return state.NewFileStore(path), func() {}, nil
	}
}

func openArchive(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*archive.Archiver, error) {
	acfg := archive.Config{
		Endpoint:  cfg.Archive.Endpoint,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Region:    cfg.Archive.Region,
		Bucket:    cfg.Archive.Bucket,
		Prefix:    cfg.Archive.Prefix,
		UseSSL:    cfg.Archive.UseSSL,
	}

	client, err := archive.NewClient(acfg)
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := archive.EnsureBucket(ensureCtx, client, acfg); err != nil {
		return nil, fmt.Errorf("ensure archive bucket: %w", err)
	}

	logger.Info("artifact archive enabled", "endpoint", acfg.Endpoint, "bucket", acfg.Bucket)
	return archive.NewArchiver(client, acfg, logger), nil
}

// openNotifier собирает настроенные Notifier. Возвращает nil, если ни один не задан.
func openNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notify.Notifier, func(), error) {
	var notifiers notify.Multi
	closeFn := func() {}

	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(notify.WebhookConfig{
			URL:    cfg.Notify.WebhookURL,
			Key:    cfg.Notify.WebhookKey,
			Logger: logger,
		}))
		logger.Info("webhook notification enabled")
	}

	if cfg.Notify.AMQPURL != "" {
		conn, err := mq.Dial(cfg.Notify.AMQPURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		if err := mq.SetupTopology(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("setup topology: %w", err)
		}
		notifiers = append(notifiers, notify.NewAMQP(mq.NewPublisher(conn, logger)))
		closeFn = func() {
			if err := conn.Close(); err != nil {
				logger.Error("close RabbitMQ connection", "error", err)
			}
		}
		logger.Info("AMQP notification enabled", "exchange", mq.ExchangeRuns)
	}

	if len(notifiers) == 0 {
		return nil, closeFn, nil
	}
	return notifiers, closeFn, nil
}

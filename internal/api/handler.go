package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/Conveyor/internal/coordinator"
	"github.com/shaiso/Conveyor/internal/pipeline"
	"github.com/shaiso/Conveyor/internal/state"
)

// Coordinator — то, что API нужно от coordinator.Coordinator.
type Coordinator interface {
	RunSync(ctx context.Context) (pipeline.Outcome, error)
	Trigger(ctx context.Context) (coordinator.Ticket, error)
	Snapshot() state.Snapshot
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	coordinator Coordinator
	resultLink  string
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Coordinator Coordinator

	// ResultLink — ссылка в ответе fire-and-forget trigger.
	ResultLink string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	link := cfg.ResultLink
	if link == "" {
		link = "/api/v1/status"
	}

	return &Handler{
		coordinator: cfg.Coordinator,
		resultLink:  link,
		logger:      logger,
	}
}

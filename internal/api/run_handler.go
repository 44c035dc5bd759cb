package api

import (
	"errors"
	"net/http"

	"github.com/shaiso/Conveyor/internal/coordinator"
)

// RunPipeline выполняет pipeline и отвечает после завершения.
// GET|POST /api/v1/pipeline/run
func (h *Handler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("pipeline trigger",
		"method", r.Method,
		"url", r.URL.String(),
	)
	if len(r.URL.Query()) > 0 {
		h.logger.Info("query parameters", "params", r.URL.Query())
	}

	out, err := h.coordinator.RunSync(r.Context())
	if err != nil {
		h.logger.Error("pipeline run error", "error", err)
		Text(w, http.StatusInternalServerError, MsgInternalError)
		return
	}

	if !out.Succeeded {
		Text(w, http.StatusBadRequest, MsgRunFailed)
		return
	}

	Text(w, http.StatusOK, MsgRunSucceeded)
}

// TriggerSync запускает pipeline в фоне и сразу отвечает.
// POST /api/v1/sync
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.coordinator.Trigger(r.Context())
	switch {
	case errors.Is(err, coordinator.ErrRunInProgress):
		Conflict(w, "sync is already running")
		return
	case errors.Is(err, coordinator.ErrStopped):
		Unavailable(w, "service is shutting down")
		return
	case errors.Is(err, coordinator.ErrQueueFull):
		Unavailable(w, "run queue is full, retry later")
		return
	case err != nil:
		InternalError(w, h.logger, err)
		return
	}

	JSON(w, http.StatusOK, TriggerFromTicket(ticket, h.resultLink))
}

// GetStatus возвращает состояние последнего фонового запуска.
// GET /api/v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, StatusFromSnapshot(h.coordinator.Snapshot()))
}

package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Запрос/ответ
	mux.Handle("GET /api/v1/pipeline/run", chain(http.HandlerFunc(h.RunPipeline)))
	mux.Handle("POST /api/v1/pipeline/run", chain(http.HandlerFunc(h.RunPipeline)))
	mux.Handle("GET /api/HttpTrigger1", chain(http.HandlerFunc(h.RunPipeline)))
	mux.Handle("POST /api/HttpTrigger1", chain(http.HandlerFunc(h.RunPipeline)))

	// Fire-and-forget
	mux.Handle("POST /api/v1/sync", chain(http.HandlerFunc(h.TriggerSync)))
	mux.Handle("POST /sync", chain(http.HandlerFunc(h.TriggerSync)))

	// Статус
	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.GetStatus)))
	mux.Handle("GET /status", chain(http.HandlerFunc(h.GetStatus)))
}

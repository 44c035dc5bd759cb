// Package api содержит HTTP API Conveyor.
//
// Структура:
//   - handler.go     — Handler с зависимостями (coordinator, logger)
//   - routes.go      — регистрация маршрутов
//   - middleware.go  — middleware (logging, recovery, метрики)
//   - response.go    — JSON и текстовые ответы
//   - dto.go         — Data Transfer Objects
//   - run_handler.go — trigger'ы запуска и статус
//
// Режимы запуска:
//   - запрос/ответ: GET|POST /api/v1/pipeline/run — ответ после завершения pipeline
//   - fire-and-forget: POST /api/v1/sync — ответ сразу, итог через GET /api/v1/status
package api

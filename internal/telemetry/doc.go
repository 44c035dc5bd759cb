// Package telemetry обеспечивает наблюдаемость сервиса.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики запусков, stages и очистки
//
// Логи пишутся в едином формате, метрики экспортируются
// на /metrics endpoint.
package telemetry

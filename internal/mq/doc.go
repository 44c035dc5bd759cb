// Package mq публикует события Conveyor в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect и graceful shutdown
//   - topology.go   — объявление exchange, очереди и binding
//   - publisher.go  — публикация сообщений
//
// Топология:
//
//	conveyor.runs (direct)
//	└── runs.finished [routing: finished]
//
// Сообщение run.finished публикуется после успешного fire-and-forget
// запуска; потребители — downstream-системы.
package mq

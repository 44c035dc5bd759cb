// Package notify оповещает downstream-системы об успешном фоновом запуске.
//
// Реализации Notifier:
//   - Webhook — POST JSON на внешний endpoint (ключ передаётся в ?code=)
//   - AMQP    — событие run.finished в RabbitMQ
//   - Multi   — рассылка во все настроенные Notifier
//
// Ошибка уведомления не меняет итог запуска: вызывающая сторона
// только логирует её.
package notify

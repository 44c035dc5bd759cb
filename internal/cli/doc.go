// Package cli реализует инструмент командной строки Conveyor.
//
// # Обзор
//
// CLI работает с conveyor-api через HTTP и не импортирует внутренние
// пакеты сервера: типы ответов дублируются здесь.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API: запуск в режиме запрос/ответ, fire-and-forget
// trigger, статус и ожидание терминального состояния.
//
//	client := cli.NewClient("http://localhost:10000")
//	status, err := client.Status(ctx)
//
// ## Output
//
// Форматирование вывода: таблицы (text/tabwriter) по умолчанию,
// JSON с флагом --json. Данные идут в stdout, сообщения в stderr:
//
//	conveyor status --json | jq .status
//
// ## Commands
//
//   - run: запуск pipeline с ожиданием результата (exit 1 при неуспехе)
//   - sync: фоновый запуск, с --wait ждёт завершения
//   - status: состояние последнего фонового запуска
//
// Команды создаются фабриками, принимающими clientFn и outputFn —
// замыкания для ленивого создания Client и Output после парсинга флагов.
package cli

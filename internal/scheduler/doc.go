// Package scheduler запускает pipeline по cron-расписанию.
//
// Структура:
//   - scheduler.go — цикл ожидания следующего времени и вызов Trigger
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    CronExpr: "0 6 * * *",
//	    Trigger:  coord,
//	    Logger:   logger,
//	})
//	go sched.Run(ctx)
//
// Scheduler не выполняет pipeline сам: он только вызывает Trigger,
// поэтому запуск по расписанию подчиняется той же политике
// перекрытия, что и HTTP trigger.
package scheduler

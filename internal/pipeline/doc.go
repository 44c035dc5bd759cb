// Package pipeline выполняет один запуск (run) pipeline.
//
// Структура:
//   - runner.go   — последовательный запуск stages с остановкой на первой ошибке
//   - verify.go   — проверка наличия artifacts с ограниченным числом попыток
//   - sweep.go    — безусловная очистка artifacts и выходных файлов
//   - pipeline.go — композиция: stages → verify → archive → sweep
//
// Ошибки stages и проверки превращаются в Outcome и никогда не
// возвращаются как error. Error из Pipeline.Run означает непредвиденный
// сбой (например, не удалось удалить файл), который обрабатывается
// только на границе HTTP API или координатора.
package pipeline

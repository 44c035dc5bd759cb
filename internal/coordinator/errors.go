package coordinator

import "errors"

var (
	// ErrRunInProgress — запуск уже идёт, а политика overlap запрещает новый.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrQueueFull — очередь фоновых запусков занята.
	ErrQueueFull = errors.New("run queue is full")

	// ErrStopped — coordinator остановлен.
	ErrStopped = errors.New("coordinator stopped")

	// ErrPanic — pipeline завершился паникой.
	ErrPanic = errors.New("pipeline panicked")
)

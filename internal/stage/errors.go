package stage

import "errors"

// Ошибки запуска stage. Возвращаются только через Result.Err.
var (
	// ErrEmptyCommand — у stage не задана команда.
	ErrEmptyCommand = errors.New("stage has empty command")

	// ErrTimeout — stage не завершился за отведённое время.
	ErrTimeout = errors.New("stage timed out")
)

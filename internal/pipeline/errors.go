package pipeline

import "errors"

// Непредвиденные сбои запуска.
var (
	// ErrCleanup — очистка не смогла удалить часть файлов.
	ErrCleanup = errors.New("cleanup failed")

	// ErrArchive — не удалось выгрузить artifacts в архив.
	ErrArchive = errors.New("archive failed")
)

// Package stage запускает один stage pipeline как отдельный процесс.
//
// Executor не знает, что делает stage: это просто исполняемый файл,
// который работает в общей рабочей директории. Успех — только код
// выхода 0. Ошибка запуска (нет файла, нельзя стартовать процесс)
// тоже превращается в неуспешный Result, а не в Go error.
//
// Каждый процесс запускается в своей группе процессов, чтобы по таймауту
// завершить и его дочерние процессы. Захват stdout/stderr ограничен
// MaxOutputBytes.
package stage

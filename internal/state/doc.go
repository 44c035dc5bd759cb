// Package state хранит состояние последнего fire-and-forget запуска.
//
// Tracker владеет маркером состояния: читает его при старте из Store,
// держит актуальное значение в памяти под мьютексом и записывает
// каждое изменение обратно в Store.
//
// Реализации Store:
//   - FileStore — один текстовый файл с литералом (status.txt)
//   - PostgresStore — одна строка в таблице conveyor_sync_state
//   - MemoryStore — для тестов и state.backend: memory
package state

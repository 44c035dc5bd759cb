// Package coordinator управляет запусками pipeline.
//
// Фоновые (fire-and-forget) запуски выполняет одна горутина, которая
// читает run ID из очереди глубины 1. Новый trigger во время выполнения
// либо присоединяется к текущему запуску (overlap: coalesce), либо
// отклоняется (overlap: reject).
//
// Синхронные запуски (RunSync) и фоновые делят общий execution lock:
// два pipeline никогда не работают с рабочей директорией одновременно.
package coordinator

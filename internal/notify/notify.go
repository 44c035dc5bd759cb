package notify

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotifyStatus — downstream ответил не-2xx.
	ErrNotifyStatus = errors.New("unexpected notification response status")

	// ErrNotifyRequest — запрос к downstream не удался.
	ErrNotifyRequest = errors.New("notification request failed")
)

// Notification — событие о завершённом запуске.
type Notification struct {
	RunID      string
	Status     string
	FinishedAt time.Time

	// Payload — произвольные данные из конфигурации (notify.payload).
	Payload map[string]any
}

// Body собирает JSON-тело уведомления: Payload плюс run_id, status
// и finished_at, если эти ключи не заданы в Payload.
func (n Notification) Body() map[string]any {
	body := make(map[string]any, len(n.Payload)+3)
	for k, v := range n.Payload {
		body[k] = v
	}
	setDefault(body, "run_id", n.RunID)
	setDefault(body, "status", n.Status)
	setDefault(body, "finished_at", n.FinishedAt.UTC().Format(time.RFC3339))
	return body
}

func setDefault(m map[string]any, key string, val any) {
	if _, ok := m[key]; !ok {
		m[key] = val
	}
}

// Notifier доставляет Notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Multi рассылает уведомление во все Notifier и объединяет ошибки.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

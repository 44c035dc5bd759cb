package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const defaultWebhookTimeout = 30 * time.Second

// Webhook отправляет уведомление POST-запросом с JSON-телом.
type Webhook struct {
	url    string
	key    string
	client *http.Client
	logger *slog.Logger
}

// WebhookConfig — конфигурация Webhook.
type WebhookConfig struct {
	URL string

	// Key — ключ доступа; если задан, добавляется как ?code=<key>.
	Key string

	// Timeout — таймаут запроса (default: 30s).
	Timeout time.Duration

	// Client — HTTP-клиент (опционально).
	Client *http.Client

	Logger *slog.Logger
}

// NewWebhook создаёт Webhook.
func NewWebhook(cfg WebhookConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Webhook{url: cfg.URL, key: cfg.Key, client: client, logger: logger}
}

// endpoint возвращает URL с ключом в query.
func (w *Webhook) endpoint() (string, error) {
	if w.key == "" {
		return w.url, nil
	}

	u, err := url.Parse(w.url)
	if err != nil {
		return "", fmt.Errorf("%w: parse url: %v", ErrNotifyRequest, err)
	}
	q := u.Query()
	q.Set("code", w.key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Notify отправляет уведомление. Ответ не-2xx — ErrNotifyStatus.
func (w *Webhook) Notify(ctx context.Context, n Notification) error {
	target, err := w.endpoint()
	if err != nil {
		return err
	}

	body, err := json.Marshal(n.Body())
	if err != nil {
		return fmt.Errorf("%w: marshal body: %v", ErrNotifyRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrNotifyRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotifyRequest, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrNotifyStatus, resp.StatusCode, truncate(string(respBody), 200))
	}

	w.logger.Info("webhook notified",
		"run_id", n.RunID,
		"status_code", resp.StatusCode,
		"response", truncate(string(respBody), 200),
	)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Литералы терминальных состояний (см. GET /api/v1/status).
const (
	StatusCompleted = "Sync completed"
	StatusFailed    = "Sync failed"
)

// ErrRunFailed — pipeline завершился неуспехом.
var ErrRunFailed = errors.New("pipeline run failed")

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// RunResult — ответ режима запрос/ответ.
type RunResult struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// Succeeded возвращает true для HTTP 200.
func (r RunResult) Succeeded() bool {
	return r.StatusCode == http.StatusOK
}

// TriggerResponse — ответ fire-and-forget trigger.
type TriggerResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Link      string `json:"link"`
	RunID     string `json:"run_id,omitempty"`
	Coalesced bool   `json:"coalesced,omitempty"`
}

// StatusResponse — состояние последнего фонового запуска.
type StatusResponse struct {
	Status     string `json:"status"`
	RunID      string `json:"run_id,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// IsTerminal возвращает true для завершённого запуска.
func (s StatusResponse) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Conveyor API.
//
// Таймаут на уровне http.Client не задан: запуск в режиме запрос/ответ
// длится столько же, сколько pipeline. Короткие запросы ограничиваются
// requestTimeout через context.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		requestTimeout: 30 * time.Second,
	}
}

// RunPipeline запускает pipeline и ждёт ответа.
// Неуспех pipeline (400/500) возвращается в RunResult, не ошибкой.
func (c *Client) RunPipeline(ctx context.Context) (*RunResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/pipeline/run")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &RunResult{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}, nil
}

// TriggerSync запускает pipeline в фоне.
func (c *Client) TriggerSync(ctx context.Context) (*TriggerResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var tr TriggerResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/sync", &tr)
	return &tr, err
}

// Status возвращает состояние последнего фонового запуска.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var st StatusResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/status", &st)
	return &st, err
}

// WaitTerminal опрашивает статус с интервалом interval до терминального состояния.
func (c *Client) WaitTerminal(ctx context.Context, interval time.Duration) (*StatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := c.Status(ctx)
		if err != nil {
			return nil, err
		}
		if st.IsTerminal() {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

// --- HTTP helpers ---

func (c *Client) doJSON(ctx context.Context, method, path string, result any) error {
	resp, err := c.do(ctx, method, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Code == "" {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}

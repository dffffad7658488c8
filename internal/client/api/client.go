package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang/snappy"

	"github.com/iudanet/agrisync/pkg/api"
)

// DefaultTimeout ограничение времени одного запроса
const DefaultTimeout = 30 * time.Second

// EncodingSnappy значение Content-Encoding для сжатых тел
const EncodingSnappy = "snappy"

// AdminKeyHeader заголовок с ключом оператора для публикации общих сущностей
const AdminKeyHeader = "X-Admin-Key"

var (
	// ErrTransport помечает ошибки, после которых запрос можно повторить:
	// таймауты, отказ в соединении, 5xx и 429.
	ErrTransport = errors.New("transport failure")

	// ErrUnauthorized возвращается при 401 (токен истек или отозван)
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError ответ сервера с кодом, отличным от 2xx
type StatusError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Unwrap позволяет проверять класс ошибки через errors.Is
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return ErrTransport
	}
	return nil
}

// Option настраивает Client
type Option func(*Client)

// WithTimeout задает таймаут одного запроса
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithCompression включает или выключает snappy сжатие
func WithCompression(enabled bool) Option {
	return func(c *Client) {
		c.compress = enabled
	}
}

// WithHTTPClient подменяет http.Client (используется в тестах)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	compress   bool
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		compress: true,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterDevice регистрирует устройство на сервере
func (c *Client) RegisterDevice(ctx context.Context, req api.RegisterDeviceRequest) (*api.RegisterDeviceResponse, error) {
	var resp api.RegisterDeviceResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/devices/register", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register device request failed: %w", err)
	}
	return &resp, nil
}

// IssueToken получает access token для устройства
func (c *Client) IssueToken(ctx context.Context, req api.TokenRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/devices/token", "", req, &resp); err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	return &resp, nil
}

// Sync отправляет пакет изменений и получает результаты и дельты
func (c *Client) Sync(ctx context.Context, accessToken string, req *api.SyncRequest) (*api.SyncResponse, error) {
	var resp api.SyncResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync", accessToken, req, &resp); err != nil {
		return nil, fmt.Errorf("sync request failed: %w", err)
	}
	return &resp, nil
}

// Delta запрашивает только дельты после курсора
func (c *Client) Delta(ctx context.Context, accessToken string, cursor map[string]int64) (*api.SyncResponse, error) {
	q := url.Values{}
	for t, v := range cursor {
		q.Set(t, fmt.Sprintf("%d", v))
	}
	path := "/api/v1/sync/delta"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp api.SyncResponse
	if err := c.doRequest(ctx, http.MethodGet, path, accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("delta request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", "", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// Publish публикует общую сущность от имени сервера (нужен admin key)
func (c *Client) Publish(ctx context.Context, adminKey string, req api.PublishRequest) (*api.Outcome, error) {
	var resp api.Outcome
	header := http.Header{}
	header.Set(AdminKeyHeader, adminKey)
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/entities", header, req, &resp); err != nil {
		return nil, fmt.Errorf("publish request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос от имени устройства
func (c *Client) doRequest(ctx context.Context, method, path, accessToken string, body, result interface{}) error {
	header := http.Header{}
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}
	return c.do(ctx, method, path, header, body, result)
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		if c.compress {
			jsonData = snappy.Encode(nil, jsonData)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		if c.compress {
			req.Header.Set("Content-Encoding", EncodingSnappy)
		}
	}
	if c.compress {
		req.Header.Set("Accept-Encoding", EncodingSnappy)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Таймауты, отказ в соединении и отмена контекста - транспортные сбои
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", ErrTransport, err)
	}

	if resp.Header.Get("Content-Encoding") == EncodingSnappy {
		respBody, err = snappy.Decode(nil, respBody)
		if err != nil {
			return fmt.Errorf("failed to decode snappy body: %w", err)
		}
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			statusErr.Code = errResp.Code
			statusErr.Message = errResp.Message
			if statusErr.Message == "" {
				statusErr.Message = errResp.Error
			}
		}
		return statusErr
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
)

const (
	// ConnectivityPath путь канала проверки связи на сервере
	ConnectivityPath = "/api/v1/connectivity"

	defaultPongWait   = 60 * time.Second
	defaultWriteWait  = 10 * time.Second
	reconnectBase     = time.Second
	reconnectMaxDelay = time.Minute
)

// WebSocketMonitor держит websocket соединение с сервером и считает устройство
// online, пока сервер отвечает на ping.
type WebSocketMonitor struct {
	dialer     *websocket.Dialer
	logger     *slog.Logger
	events     chan Event
	newBackoff func() retry.Backoff
	url        string
	pongWait   time.Duration
	pingPeriod time.Duration
	online     bool
}

// WebSocketOption настраивает WebSocketMonitor
type WebSocketOption func(*WebSocketMonitor)

// WithPongWait задает время ожидания pong; ping отправляется каждые 9/10 этого времени
func WithPongWait(d time.Duration) WebSocketOption {
	return func(m *WebSocketMonitor) {
		m.pongWait = d
		m.pingPeriod = d * 9 / 10
	}
}

// WithReconnectBackoff подменяет политику переподключения
func WithReconnectBackoff(f func() retry.Backoff) WebSocketOption {
	return func(m *WebSocketMonitor) {
		m.newBackoff = f
	}
}

// NewWebSocketMonitor создает монитор для сервера serverURL (http или https)
func NewWebSocketMonitor(serverURL string, logger *slog.Logger, opts ...WebSocketOption) (*WebSocketMonitor, error) {
	wsURL, err := toWebSocketURL(serverURL)
	if err != nil {
		return nil, err
	}

	m := &WebSocketMonitor{
		url:        wsURL,
		logger:     logger,
		events:     make(chan Event, 16),
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		pongWait:   defaultPongWait,
		pingPeriod: defaultPongWait * 9 / 10,
		newBackoff: func() retry.Backoff {
			return retry.WithCappedDuration(reconnectMaxDelay, retry.NewExponential(reconnectBase))
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Events returns the event channel.
func (m *WebSocketMonitor) Events() <-chan Event {
	return m.events
}

// Run подключается к серверу и переподключается с экспоненциальной задержкой,
// пока не отменен ctx. По завершении канал событий закрывается.
func (m *WebSocketMonitor) Run(ctx context.Context) error {
	defer close(m.events)

	b := m.newBackoff()
	for {
		conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
		if err == nil {
			b = m.newBackoff()
			m.setState(ctx, Online)
			err = m.serve(ctx, conn)
		}
		m.setState(ctx, Offline)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Debug("Connectivity channel lost", "url", m.url, "error", err)

		delay, stop := b.Next()
		if stop {
			return fmt.Errorf("connectivity reconnect stopped: %w", err)
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// serve поддерживает соединение ping/pong до ошибки чтения или отмены ctx
func (m *WebSocketMonitor) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(m.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(m.pongWait))
	})

	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(m.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(defaultWriteWait))
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWriteWait)); err != nil {
				return err
			}
		}
	}
}

// setState публикует событие только при смене состояния
func (m *WebSocketMonitor) setState(ctx context.Context, s State) {
	online := s == Online
	if m.online == online {
		return
	}
	m.online = online

	select {
	case m.events <- Event{State: s, At: time.Now()}:
	case <-ctx.Done():
	}
}

func toWebSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("server url must be http(s) or ws(s)")
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + ConnectivityPath
	return u.String(), nil
}

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	connectivityWriteWait = 10 * time.Second
	defaultLivenessPeriod = 30 * time.Second
)

// ConnectivityHandler держит websocket-канал живости для клиентских мониторов связи.
// Клиент шлет ping и ждет pong; сервер в ответ шлет свои ping и закрывает
// соединение, если клиент молчит дольше двух периодов.
type ConnectivityHandler struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	period   time.Duration
}

// NewConnectivityHandler создает handler канала живости
func NewConnectivityHandler(logger *slog.Logger, period time.Duration) *ConnectivityHandler {
	if period <= 0 {
		period = defaultLivenessPeriod
	}
	return &ConnectivityHandler{
		logger: logger,
		period: period,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 512,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve обрабатывает GET /api/v1/connectivity
func (h *ConnectivityHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже отправил ответ клиенту
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer func() { _ = conn.Close() }()

	deadline := 2 * h.period
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(connectivityWriteWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(connectivityWriteWait))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(connectivityWriteWait)); err != nil {
				return
			}
		}
	}
}

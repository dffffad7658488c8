package connectivity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fastBackoff() retry.Backoff {
	return retry.NewConstant(10 * time.Millisecond)
}

func nextEvent(t *testing.T, m *WebSocketMonitor) Event {
	t.Helper()
	select {
	case ev, ok := <-m.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connectivity event")
	}
	return Event{}
}

func TestToWebSocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/api/v1/connectivity", false},
		{"https://sync.example.org/", "wss://sync.example.org/api/v1/connectivity", false},
		{"ws://host", "ws://host/api/v1/connectivity", false},
		{"ftp://host", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := toWebSocketURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWebSocketMonitor_OnlineThenOffline(t *testing.T) {
	upgrader := websocket.Upgrader{}
	drop := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ConnectivityPath, r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		<-drop
	}))
	defer server.Close()

	m, err := NewWebSocketMonitor(server.URL, setupTestLogger(),
		WithReconnectBackoff(fastBackoff),
		WithPongWait(time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.Equal(t, Online, nextEvent(t, m).State)

	// Сервер закрывает соединение - монитор сообщает offline и переподключается
	close(drop)
	assert.Equal(t, Offline, nextEvent(t, m).State)
	assert.Equal(t, Online, nextEvent(t, m).State)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestWebSocketMonitor_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	m, err := NewWebSocketMonitor(url, setupTestLogger(),
		WithReconnectBackoff(func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewConstant(5*time.Millisecond))
		}))
	require.NoError(t, err)

	err = m.Run(context.Background())
	require.Error(t, err)

	// Соединения не было - событий нет, канал закрыт
	_, ok := <-m.Events()
	assert.False(t, ok)
}

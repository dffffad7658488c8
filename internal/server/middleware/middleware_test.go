package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/agrisync/internal/server/handlers"
	"github.com/iudanet/agrisync/internal/server/jwt"
	"github.com/iudanet/agrisync/pkg/api"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func errorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Code
}

func TestAuthMiddleware(t *testing.T) {
	tokens := jwt.NewService(testJWTSecret, time.Minute)
	token, _, err := tokens.GenerateAccessToken("device-1", "farmer-1")
	require.NoError(t, err)

	var gotDevice, gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDevice, _ = handlers.GetDeviceID(r.Context())
		gotUser, _ = handlers.GetUserID(r.Context())
		okHandler(w, r)
	})
	handler := AuthMiddleware(setupTestLogger(), tokens)(next)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid token", header: "Bearer " + token, want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + token, want: http.StatusOK},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, want: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc.def.ghi", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotDevice, gotUser = "", ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/delta", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "device-1", gotDevice)
				assert.Equal(t, "farmer-1", gotUser)
			} else {
				assert.Equal(t, api.CodeAuthentication, errorCode(t, w.Body))
			}
		})
	}
}

func TestAdminKeyMiddleware(t *testing.T) {
	handler := AdminKeyMiddleware(setupTestLogger(), "operator-key")(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/entities", nil)
	req.Header.Set(AdminKeyHeader, "operator-key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req.Header.Set(AdminKeyHeader, "wrong")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Без настроенного ключа доступ закрыт
	closed := AdminKeyMiddleware(setupTestLogger(), "")(http.HandlerFunc(okHandler))
	req.Header.Del(AdminKeyHeader)
	w = httptest.NewRecorder()
	closed.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tokens := jwt.NewService(testJWTSecret, time.Minute)
	token, _, err := tokens.GenerateAccessToken("device-7", "farmer-1")
	require.NoError(t, err)

	handler := LoggingMiddleware(logger, "/api/v1/health")(
		AuthMiddleware(setupTestLogger(), tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		})),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "HTTP request", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, float64(len("short and stout")), entry["bytes_written"])
	assert.Equal(t, "device-7", entry["device_id"])
	assert.NotContains(t, buf.String(), token)

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Empty(t, buf.String(), "skipped paths are not logged")
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(setupTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	}))

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, api.CodeInternal, errorCode(t, w.Body))
	assert.NotContains(t, w.Body.String(), "nil map write")
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, wait := rl.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	ok, _ = rl.Allow("10.0.0.2")
	assert.True(t, ok, "keys are independent")

	now = now.Add(500 * time.Millisecond)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok, "one token refilled")
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	handler := RateLimitMiddleware(rl, setupTestLogger())(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, api.CodeRateLimit, errorCode(t, w.Body))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", getClientIP(req))
}

func TestCompressionMiddleware(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write(body)
	})
	handler := CompressionMiddleware(setupTestLogger(), 1024)(echo)

	payload := []byte(`{"device_id":"d-1","changes":[]}`)

	t.Run("snappy both ways", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", bytes.NewReader(snappy.Encode(nil, payload)))
		req.Header.Set("Content-Encoding", EncodingSnappy)
		req.Header.Set("Accept-Encoding", EncodingSnappy)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, EncodingSnappy, w.Header().Get("Content-Encoding"))
		decoded, err := snappy.Decode(nil, w.Body.Bytes())
		require.NoError(t, err)
		assert.Equal(t, payload, decoded)
	})

	t.Run("plain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", bytes.NewReader(payload))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, payload, w.Body.Bytes())
	})

	t.Run("corrupt snappy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", strings.NewReader("\xff\xff\xff"))
		req.Header.Set("Content-Encoding", EncodingSnappy)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("decompression bomb", func(t *testing.T) {
		big := snappy.Encode(nil, bytes.Repeat([]byte("a"), 4096))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", bytes.NewReader(big))
		req.Header.Set("Content-Encoding", EncodingSnappy)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("body limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", bytes.NewReader(bytes.Repeat([]byte("a"), 2048)))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

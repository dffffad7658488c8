package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/agrisync/pkg/api"
)

// readBody читает тело запроса с учетом snappy
func readBody(t *testing.T, r *http.Request, v interface{}) {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	if r.Header.Get("Content-Encoding") == EncodingSnappy {
		raw, err = snappy.Decode(nil, raw)
		require.NoError(t, err)
	}
	require.NoError(t, json.Unmarshal(raw, v))
}

// writeBody пишет JSON ответ, сжимая его если клиент это поддерживает
func writeBody(t *testing.T, w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	if r.Header.Get("Accept-Encoding") == EncodingSnappy {
		raw = snappy.Encode(nil, raw)
		w.Header().Set("Content-Encoding", EncodingSnappy)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	assert.NotNil(t, client)
	assert.Equal(t, baseURL, client.baseURL)
	assert.True(t, client.compress)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)

	client = NewClient(baseURL, WithTimeout(5*time.Second), WithCompression(false))
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.False(t, client.compress)
}

func TestClient_Sync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sync", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, EncodingSnappy, r.Header.Get("Content-Encoding"))

		var req api.SyncRequest
		readBody(t, r, &req)
		assert.Equal(t, "device-1", req.DeviceID)
		assert.Equal(t, int64(4), req.Cursor["PRICE_QUERY"])
		require.Len(t, req.Changes, 1)

		writeBody(t, w, r, http.StatusOK, api.SyncResponse{
			Outcomes: []api.Outcome{{ChangeID: "c1", EntityID: "e1", Status: api.StatusAcked, ServerVersion: 5}},
			Deltas:   []api.Entity{{EntityID: "e1", EntityType: "PRICE_QUERY", ServerVersion: 5}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Sync(context.Background(), "token-1", &api.SyncRequest{
		DeviceID: "device-1",
		Cursor:   map[string]int64{"PRICE_QUERY": 4},
		Changes:  []api.Change{{ChangeID: "c1", EntityID: "e1", EntityType: "PRICE_QUERY"}},
	})

	require.NoError(t, err)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, api.StatusAcked, resp.Outcomes[0].Status)
	assert.Equal(t, int64(5), resp.Deltas[0].ServerVersion)
}

func TestClient_Sync_Uncompressed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Encoding"))
		var req api.SyncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeBody(t, w, r, http.StatusOK, api.SyncResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithCompression(false))
	_, err := client.Sync(context.Background(), "t", &api.SyncRequest{DeviceID: "d"})
	require.NoError(t, err)
}

func TestClient_Delta(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/sync/delta", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("PROFILE_UPDATE"))
		writeBody(t, w, r, http.StatusOK, api.SyncResponse{
			Deltas: []api.Entity{{EntityID: "p", EntityType: "PROFILE_UPDATE", ServerVersion: 8}},
		})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Delta(context.Background(), "t", map[string]int64{"PROFILE_UPDATE": 7})
	require.NoError(t, err)
	require.Len(t, resp.Deltas, 1)
}

func TestClient_RegisterDeviceAndToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/devices/register":
			var req api.RegisterDeviceRequest
			readBody(t, r, &req)
			assert.Equal(t, "enroll", req.EnrollmentKey)
			writeBody(t, w, r, http.StatusCreated, api.RegisterDeviceResponse{DeviceID: req.DeviceID})
		case "/api/v1/devices/token":
			var req api.TokenRequest
			readBody(t, r, &req)
			assert.Equal(t, "secret", req.DeviceSecret)
			writeBody(t, w, r, http.StatusOK, api.TokenResponse{AccessToken: "jwt", ExpiresIn: 900})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	reg, err := client.RegisterDevice(ctx, api.RegisterDeviceRequest{DeviceID: "d1", UserID: "u1", DeviceSecret: "secret", EnrollmentKey: "enroll"})
	require.NoError(t, err)
	assert.Equal(t, "d1", reg.DeviceID)

	tok, err := client.IssueToken(ctx, api.TokenRequest{DeviceID: "d1", DeviceSecret: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", tok.AccessToken)
	assert.Equal(t, int64(900), tok.ExpiresIn)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransport bool
		wantUnauth    bool
	}{
		{"bad request", http.StatusBadRequest, false, false},
		{"unauthorized", http.StatusUnauthorized, false, true},
		{"rate limited", http.StatusTooManyRequests, true, false},
		{"internal", http.StatusInternalServerError, true, false},
		{"unavailable", http.StatusServiceUnavailable, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeBody(t, w, r, tt.status, api.ErrorResponse{Error: "boom", Code: "X", Message: "details"})
			}))
			defer server.Close()

			_, err := NewClient(server.URL).Sync(context.Background(), "t", &api.SyncRequest{})
			require.Error(t, err)
			assert.Equal(t, tt.wantTransport, errors.Is(err, ErrTransport))
			assert.Equal(t, tt.wantUnauth, errors.Is(err, ErrUnauthorized))

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, "details", statusErr.Message)
		})
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url).Health(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, WithTimeout(50*time.Millisecond))
	_, err := client.Sync(context.Background(), "t", &api.SyncRequest{})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClient_Publish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/admin/entities", r.URL.Path)
		assert.Equal(t, "op-key", r.Header.Get(AdminKeyHeader))
		assert.Empty(t, r.Header.Get("Authorization"))

		var req api.PublishRequest
		readBody(t, r, &req)
		assert.Equal(t, "mandi-price-1", req.EntityID)

		writeBody(t, w, r, http.StatusOK, api.Outcome{EntityID: req.EntityID, Status: api.StatusAcked, ServerVersion: 3})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	out, err := client.Publish(context.Background(), "op-key", api.PublishRequest{
		EntityID:   "mandi-price-1",
		EntityType: "PRICE_QUERY",
		Payload:    []byte(`{"crop":"wheat"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.ServerVersion)
}

package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang/snappy"

	"github.com/iudanet/agrisync/internal/server/handlers"
	"github.com/iudanet/agrisync/pkg/api"
)

// EncodingSnappy значение Content-Encoding для тел, сжатых snappy (block format)
const EncodingSnappy = "snappy"

// bufferedWriter накапливает ответ, чтобы сжать его целиком
type bufferedWriter struct {
	http.ResponseWriter
	buf        bytes.Buffer
	statusCode int
}

func (bw *bufferedWriter) WriteHeader(code int) {
	if bw.statusCode == 0 {
		bw.statusCode = code
	}
}

func (bw *bufferedWriter) Write(b []byte) (int, error) {
	if bw.statusCode == 0 {
		bw.statusCode = http.StatusOK
	}
	return bw.buf.Write(b)
}

// CompressionMiddleware ограничивает размер тела запроса, распаковывает
// тела с Content-Encoding: snappy и сжимает ответ, если клиент прислал
// Accept-Encoding: snappy. Websocket-запросы пропускаются без изменений.
func CompressionMiddleware(logger *slog.Logger, maxBodyBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			}

			if strings.EqualFold(r.Header.Get("Content-Encoding"), EncodingSnappy) {
				body, err := decodeSnappyBody(r.Body, maxBodyBytes)
				if err != nil {
					logger.Warn("Failed to decode snappy body", "error", err, "path", r.URL.Path)
					handlers.WriteError(w, logger, http.StatusBadRequest, api.CodeValidation, "invalid compressed body")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				r.Header.Del("Content-Encoding")
				r.ContentLength = int64(len(body))
			}

			if !acceptsSnappy(r) {
				next.ServeHTTP(w, r)
				return
			}

			bw := &bufferedWriter{ResponseWriter: w}
			next.ServeHTTP(bw, r)

			if bw.statusCode == 0 {
				bw.statusCode = http.StatusOK
			}
			encoded := snappy.Encode(nil, bw.buf.Bytes())

			w.Header().Del("Content-Length")
			w.Header().Set("Content-Encoding", EncodingSnappy)
			w.Header().Add("Vary", "Accept-Encoding")
			w.WriteHeader(bw.statusCode)
			if _, err := w.Write(encoded); err != nil {
				logger.Debug("Failed to write compressed response", "error", err)
			}
		})
	}
}

func decodeSnappyBody(body io.Reader, limit int64) ([]byte, error) {
	compressed, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	n, err := snappy.DecodedLen(compressed)
	if err != nil {
		return nil, err
	}
	if int64(n) > limit {
		return nil, &http.MaxBytesError{Limit: limit}
	}
	return snappy.Decode(nil, compressed)
}

func acceptsSnappy(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(enc, EncodingSnappy) {
			return true
		}
	}
	return false
}

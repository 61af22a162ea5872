package slogx_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/admitgate/pkg/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/admin/accounts/{id}/active", func(w http.ResponseWriter, r *http.Request) {
		slogx.FromContext(r.Context()).Info("inside")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /v1/phone/check", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	h := slogx.HTTPMiddleware(logger)(mux)

	t.Run("logs route pattern and propagates request id", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/accounts/01JNK000/active", nil)
		req.Header.Set(slogx.RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "req-123", rec.Header().Get(slogx.RequestIDHeader))
		assert.Contains(t, buf.String(), `"msg":"inside"`)

		entry := lastLine(t, &buf)
		assert.Equal(t, "http_request", entry["msg"])
		assert.Equal(t, "req-123", entry["req_id"])
		assert.Equal(t, "POST /v1/admin/accounts/{id}/active", entry["route"])
		assert.EqualValues(t, 200, entry["status"])
		assert.EqualValues(t, 2, entry["bytes"])
	})

	t.Run("generates request id and warns on throttling", func(t *testing.T) {
		buf.Reset()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/phone/check", nil))

		assert.NotEmpty(t, rec.Header().Get(slogx.RequestIDHeader))
		entry := lastLine(t, &buf)
		assert.Equal(t, "WARN", entry["level"])
		assert.EqualValues(t, 429, entry["status"])
	})

	t.Run("unmatched paths fall back to the raw path", func(t *testing.T) {
		buf.Reset()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

		entry := lastLine(t, &buf)
		assert.Equal(t, "/nope", entry["route"])
		assert.EqualValues(t, 404, entry["status"])
	})
}

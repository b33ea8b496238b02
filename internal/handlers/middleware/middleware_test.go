// internal/handlers/middleware/middleware_test.go
package middleware_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchkit/cartd/internal/handlers/middleware"
	"github.com/merchkit/cartd/internal/pkg/logger"
)

// captureLogger returns a logger writing JSON lines into the buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func okHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}

func TestRequestID(t *testing.T) {
	var seenID string
	wrapped := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID, _ = r.Context().Value(logger.ContextKeyRequestID).(string)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates_uuid_when_absent", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/carts/cart-1", nil)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		id := w.Header().Get("X-Request-ID")
		assert.Len(t, id, 36)
		assert.Equal(t, id, seenID, "header and context carry the same id")
	})

	t.Run("keeps_upstream_id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/carts/cart-1", nil)
		req.Header.Set("X-Request-ID", "lb-assigned-7")
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		assert.Equal(t, "lb-assigned-7", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "lb-assigned-7", seenID)
	})
}

func TestLogger(t *testing.T) {
	log, logBuf := captureLogger()

	wrapped := middleware.Logger(log)(okHandler("ok"))

	req := httptest.NewRequest("POST", "/api/v1/carts/cart-42/items", nil)
	req = req.WithContext(context.WithValue(req.Context(), logger.ContextKeyRequestID, "req-123"))
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	out := logBuf.String()
	assert.Contains(t, out, "request_started")
	assert.Contains(t, out, "request_completed")
	assert.Contains(t, out, "/api/v1/carts/cart-42/items")
	assert.NotContains(t, out, "!BADKEY")
}

func TestRecovery(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantBody   string
		wantLogged string
	}{
		{
			name:       "recovers_from_panic",
			handler:    func(w http.ResponseWriter, r *http.Request) { panic("boom") },
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal Server Error",
			wantLogged: "panic recovered",
		},
		{
			name:       "passes_through_normal_response",
			handler:    okHandler("normal response"),
			wantStatus: http.StatusOK,
			wantBody:   "normal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, logBuf := captureLogger()
			wrapped := middleware.Recovery(log)(tt.handler)

			req := httptest.NewRequest("GET", "/api/v1/carts/cart-1", nil)
			req = req.WithContext(context.WithValue(req.Context(), logger.ContextKeyRequestID, "req-123"))
			w := httptest.NewRecorder()

			wrapped.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			if tt.wantLogged != "" {
				assert.Contains(t, logBuf.String(), tt.wantLogged)
			} else {
				assert.Empty(t, logBuf.String())
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	wrapped := middleware.RateLimit(2, time.Second)(okHandler("ok"))

	hit := func(addr string) int {
		req := httptest.NewRequest("GET", "/api/v1/carts/cart-1", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("127.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, hit("127.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, hit("127.0.0.1:1234"),
		"third request within the window is rejected")

	// Limits are per client IP.
	assert.Equal(t, http.StatusOK, hit("192.168.1.1:5678"))
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		requestMethod  string
		wantStatus     int
		wantAllowed    string
	}{
		{
			name:           "wildcard_echoes_origin",
			allowedOrigins: []string{"*"},
			requestOrigin:  "https://shop.example.com",
			requestMethod:  "GET",
			wantStatus:     http.StatusOK,
			wantAllowed:    "https://shop.example.com",
		},
		{
			name:           "listed_origin_allowed",
			allowedOrigins: []string{"https://shop.example.com", "https://admin.example.com"},
			requestOrigin:  "https://shop.example.com",
			requestMethod:  "GET",
			wantStatus:     http.StatusOK,
			wantAllowed:    "https://shop.example.com",
		},
		{
			name:           "preflight_short_circuits",
			allowedOrigins: []string{"*"},
			requestOrigin:  "https://shop.example.com",
			requestMethod:  "OPTIONS",
			wantStatus:     http.StatusNoContent,
			wantAllowed:    "https://shop.example.com",
		},
		{
			name:           "unlisted_origin_gets_no_cors_headers",
			allowedOrigins: []string{"https://shop.example.com"},
			requestOrigin:  "https://evil.example.com",
			requestMethod:  "GET",
			wantStatus:     http.StatusOK,
			wantAllowed:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := middleware.CORS(tt.allowedOrigins)(okHandler("ok"))

			req := httptest.NewRequest(tt.requestMethod, "/api/v1/carts/cart-1", nil)
			req.Header.Set("Origin", tt.requestOrigin)
			w := httptest.NewRecorder()

			wrapped.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllowed, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.requestMethod == "OPTIONS" && tt.wantAllowed != "" {
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Headers"))
			}
		})
	}
}

func TestSecureHeaders(t *testing.T) {
	wrapped := middleware.SecureHeaders(okHandler("ok"))

	req := httptest.NewRequest("GET", "/api/v1/carts/cart-1", nil)
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	// Plain HTTP request, so no HSTS.
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestTimeout(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		handlerDelay time.Duration
		wantStatus   int
		wantBody     string
	}{
		{
			name:         "completes_within_timeout",
			timeout:      100 * time.Millisecond,
			handlerDelay: 10 * time.Millisecond,
			wantStatus:   http.StatusOK,
			wantBody:     "success",
		},
		{
			name:         "slow_handler_times_out",
			timeout:      50 * time.Millisecond,
			handlerDelay: 200 * time.Millisecond,
			wantStatus:   http.StatusGatewayTimeout,
			wantBody:     "Request timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(tt.handlerDelay):
					w.WriteHeader(http.StatusOK)
					w.Write([]byte("success"))
				case <-r.Context().Done():
				}
			})

			wrapped := middleware.Timeout(tt.timeout)(handler)

			req := httptest.NewRequest("GET", "/api/v1/carts/cart-1", nil)
			w := httptest.NewRecorder()

			wrapped.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestCompression(t *testing.T) {
	wrapped := middleware.Compression(okHandler("compress me, please"))

	t.Run("gzips_when_accepted", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/carts/cart-1", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		gz, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(gz)
		require.NoError(t, err)
		assert.Equal(t, "compress me, please", string(body))
	})

	t.Run("passthrough_without_accept_encoding", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/carts/cart-1", nil)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, "compress me, please", w.Body.String())
	})
}

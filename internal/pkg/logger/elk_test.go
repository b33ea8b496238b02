// internal/pkg/logger/elk_test.go
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestELKHandler_ShipsDocumentPerRecord(t *testing.T) {
	bodies := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
	}))
	defer srv.Close()

	h := NewELKHandler(ELKConfig{
		ElasticsearchURL: srv.URL,
		IndexPattern:     "cartd",
	}, slog.NewTextHandler(io.Discard, nil))

	ctx := context.WithValue(context.Background(), ContextKeyCartID, "cart-42")
	log := slog.New(h)
	log.ErrorContext(ctx, "persist failed",
		slog.String("key", "cart:cart-42:items"),
		slog.Any("error", errors.New("connection reset")))

	select {
	case body := <-bodies:
		lines := strings.Split(strings.TrimSpace(body), "\n")
		require.Len(t, lines, 2, "bulk framing is one action line plus one document")
		assert.Contains(t, lines[0], `"cartd-`)
		assert.Contains(t, lines[1], `"message":"persist failed"`)
		assert.Contains(t, lines[1], `"cart_id":"cart-42"`)
		assert.Contains(t, lines[1], `"connection reset"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no bulk request arrived")
	}
}

func TestELKHandler_BatchFlushesAtSize(t *testing.T) {
	bodies := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
	}))
	defer srv.Close()

	h := NewELKHandler(ELKConfig{
		ElasticsearchURL: srv.URL,
		IndexPattern:     "cartd",
		BatchSize:        2,
		FlushInterval:    time.Hour,
		EnableBatching:   true,
	}, slog.NewTextHandler(io.Discard, nil))

	log := slog.New(h)
	log.Info("first")
	log.Info("second")

	select {
	case body := <-bodies:
		assert.Contains(t, body, `"first"`)
		assert.Contains(t, body, `"second"`)
	case <-time.After(2 * time.Second):
		t.Fatal("batch never flushed")
	}
}

func TestELKHandler_WithAttrsSharesShipper(t *testing.T) {
	h := NewELKHandler(ELKConfig{IndexPattern: "cartd"}, slog.NewTextHandler(io.Discard, nil))

	clone, ok := h.WithAttrs([]slog.Attr{slog.String("component", "worker")}).(*ELKHandler)
	require.True(t, ok)
	assert.Same(t, h.shipper, clone.shipper, "clones must not fork the buffer")
}

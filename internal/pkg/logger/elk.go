// internal/pkg/logger/elk.go
package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// ELKConfig configures shipping logs to Elasticsearch. IndexPattern doubles
// as the service name in the index; entries land in <pattern>-YYYY.MM.DD.
type ELKConfig struct {
	ElasticsearchURL string        `json:"elasticsearch_url"`
	IndexPattern     string        `json:"index_pattern"`
	BatchSize        int           `json:"batch_size"`
	FlushInterval    time.Duration `json:"flush_interval"`
	Username         string        `json:"username"`
	Password         string        `json:"password"`
	EnableBatching   bool          `json:"enable_batching"`
}

// esDocument is the document shape indexed into Elasticsearch.
type esDocument struct {
	Timestamp   time.Time      `json:"@timestamp"`
	Level       string         `json:"level"`
	Message     string         `json:"message"`
	Service     string         `json:"service"`
	Environment string         `json:"environment"`
	Version     string         `json:"version"`
	RequestID   string         `json:"request_id,omitempty"`
	TraceID     string         `json:"trace_id,omitempty"`
	CartID      string         `json:"cart_id,omitempty"`
	ClientIP    string         `json:"client_ip,omitempty"`
	Method      string         `json:"method,omitempty"`
	Path        string         `json:"path,omitempty"`
	StatusCode  int            `json:"status_code,omitempty"`
	Duration    float64        `json:"duration_ms,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	Error       *esError       `json:"error,omitempty"`
}

type esError struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	StackTrace string `json:"stack_trace,omitempty"`
	Code       string `json:"code,omitempty"`
}

// bulkShipper owns the HTTP side of log shipping: buffering, the periodic
// flush loop, and the _bulk POST. It is shared by all clones of the handler
// so WithAttrs and WithGroup never fork a second buffer or ticker.
type bulkShipper struct {
	client *http.Client
	config ELKConfig

	mu     sync.Mutex
	buffer []esDocument
}

func newBulkShipper(cfg ELKConfig) *bulkShipper {
	s := &bulkShipper{
		client: &http.Client{Timeout: 10 * time.Second},
		config: cfg,
		buffer: make([]esDocument, 0, cfg.BatchSize),
	}
	if cfg.EnableBatching {
		go s.flushLoop()
	}
	return s
}

// enqueue hands a document to the shipper. In batching mode it may trigger
// an early flush; otherwise the document is shipped on its own.
func (s *bulkShipper) enqueue(doc esDocument) {
	if !s.config.EnableBatching {
		go s.ship([]esDocument{doc})
		return
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, doc)
	full := len(s.buffer) >= s.config.BatchSize
	s.mu.Unlock()

	if full {
		go s.flush()
	}
}

func (s *bulkShipper) flushLoop() {
	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.flush()
	}
}

func (s *bulkShipper) flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	docs := make([]esDocument, len(s.buffer))
	copy(docs, s.buffer)
	s.buffer = s.buffer[:0]
	s.mu.Unlock()

	s.ship(docs)
}

// ship POSTs documents through the _bulk endpoint in ndjson framing.
// Failures are reported on stderr; the local log line already landed through
// the base handler, so shipping is strictly best effort.
func (s *bulkShipper) ship(docs []esDocument) {
	if len(docs) == 0 {
		return
	}

	index := fmt.Sprintf("%s-%s", s.config.IndexPattern, time.Now().Format("2006.01.02"))

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, doc := range docs {
		// Encode writes the trailing newline ndjson needs.
		if err := enc.Encode(map[string]any{"index": map[string]string{"_index": index}}); err != nil {
			continue
		}
		if err := enc.Encode(doc); err != nil {
			continue
		}
	}

	req, err := http.NewRequest(http.MethodPost, s.config.ElasticsearchURL+"/_bulk", &body)
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if s.config.Username != "" && s.config.Password != "" {
		req.SetBasicAuth(s.config.Username, s.config.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to send logs to elasticsearch: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "elasticsearch returned error status: %d\n", resp.StatusCode)
	}
}

// ELKHandler mirrors every record to Elasticsearch while delegating the
// local write to the wrapped base handler.
type ELKHandler struct {
	shipper *bulkShipper
	base    slog.Handler
}

func NewELKHandler(cfg ELKConfig, base slog.Handler) *ELKHandler {
	return &ELKHandler{
		shipper: newBulkShipper(cfg),
		base:    base,
	}
}

func (h *ELKHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *ELKHandler) Handle(ctx context.Context, record slog.Record) error {
	if err := h.base.Handle(ctx, record); err != nil {
		return err
	}
	h.shipper.enqueue(documentFromRecord(ctx, record))
	return nil
}

func (h *ELKHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ELKHandler{shipper: h.shipper, base: h.base.WithAttrs(attrs)}
}

func (h *ELKHandler) WithGroup(name string) slog.Handler {
	return &ELKHandler{shipper: h.shipper, base: h.base.WithGroup(name)}
}

// documentFromRecord folds the request-scoped context values and the record
// attributes into one flat document.
func documentFromRecord(ctx context.Context, record slog.Record) esDocument {
	doc := esDocument{
		Timestamp:   record.Time,
		Level:       record.Level.String(),
		Message:     record.Message,
		Service:     contextString(ctx, ContextKeyService),
		Environment: contextString(ctx, ContextKeyEnvironment),
		Version:     contextString(ctx, ContextKeyVersion),
		RequestID:   contextString(ctx, ContextKeyRequestID),
		TraceID:     contextString(ctx, ContextKeyTraceID),
		CartID:      contextString(ctx, ContextKeyCartID),
		ClientIP:    contextString(ctx, ContextKeyClientIP),
		Method:      contextString(ctx, ContextKeyMethod),
		Path:        contextString(ctx, ContextKeyPath),
		Fields:      make(map[string]any),
	}

	if code, ok := ctx.Value(ContextKeyStatusCode).(int); ok {
		doc.StatusCode = code
	}
	if d, ok := ctx.Value(ContextKeyDuration).(time.Duration); ok {
		doc.Duration = float64(d.Milliseconds())
	}

	record.Attrs(func(a slog.Attr) bool {
		doc.Fields[a.Key] = a.Value.Any()

		switch a.Key {
		case "error", "err":
			if err, ok := a.Value.Any().(error); ok {
				doc.Error = &esError{
					Type:    fmt.Sprintf("%T", err),
					Message: err.Error(),
				}
			}
		case "stack", "stacktrace":
			if stack, ok := a.Value.Any().(string); ok && doc.Error != nil {
				doc.Error.StackTrace = stack
			}
		}
		return true
	})

	return doc
}

func contextString(ctx context.Context, key ContextKey) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// SetupELKLogging builds the production logger: sampled JSON to stdout
// with the ELK shipper layered on top.
func SetupELKLogging(cfg ELKConfig) *Logger {
	serviceName := cfg.IndexPattern
	if serviceName == "" {
		serviceName = "cartd"
	}

	logConfig := &LogConfig{
		Level:          "info",
		Format:         "json",
		Output:         "stdout",
		AddSource:      true,
		EnableSampling: true,
		SampleRate:     0.1,
		ServiceName:    serviceName,
		Environment:    "production",
	}

	baseLogger := NewLogger(logConfig)

	elkHandler := NewELKHandler(cfg, baseLogger.handlers[0])

	baseLogger.Logger = slog.New(elkHandler)
	baseLogger.handlers = []slog.Handler{elkHandler}

	return baseLogger
}

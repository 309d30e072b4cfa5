package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// MetricsExporter names the recorder a deployment selects.
type MetricsExporter string

// Supported exporters.
const (
	MetricsNone       MetricsExporter = "none"
	MetricsExpvar     MetricsExporter = "expvar"
	MetricsPrometheus MetricsExporter = "prometheus"
)

// ParseMetricsExporter validates a configured exporter; empty selects none.
func ParseMetricsExporter(raw string) (MetricsExporter, error) {
	switch e := MetricsExporter(strings.ToLower(strings.TrimSpace(raw))); e {
	case "", MetricsNone:
		return MetricsNone, nil
	case MetricsExpvar, MetricsPrometheus:
		return e, nil
	default:
		return "", fmt.Errorf("unknown metrics exporter %q", raw)
	}
}

// OperationStats aggregates the outcomes of one operation.
type OperationStats struct {
	Success int64   `json:"success"`
	Error   int64   `json:"error"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// ExpvarMetricsSnapshot is a point-in-time copy of the recorder state.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	Stock      map[string]string         `json:"ppe_stock"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// ExpvarMetricsRecorder publishes per-operation counters and PPE stock levels
// through expvar.
type ExpvarMetricsRecorder struct {
	name  string
	mu    sync.Mutex
	ops   map[string]OperationStats
	stock map[string]string
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated name when empty.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("ehscore_service_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{
		name:  name,
		ops:   make(map[string]OperationStats),
		stock: make(map[string]string),
	}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot copies the current counters.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make(map[string]OperationStats, len(r.ops))
	for op, s := range r.ops {
		ops[op] = s
	}
	stock := make(map[string]string, len(r.stock))
	for id, level := range r.stock {
		stock[id] = level
	}
	return ExpvarMetricsSnapshot{Operations: ops, Stock: stock, RecordedAt: time.Now().UTC()}
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.mu.Lock()
	s := r.ops[operation]
	if success {
		s.Success++
	} else {
		s.Error++
	}
	s.TotalMS += ms
	if ms > s.MaxMS {
		s.MaxMS = ms
	}
	r.ops[operation] = s
	r.mu.Unlock()
}

// ObserveStock implements StockObserver.
func (r *ExpvarMetricsRecorder) ObserveStock(item PpeItem) {
	r.mu.Lock()
	r.stock[item.ID] = item.Stock.String()
	r.mu.Unlock()
}

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes finished spans as JSON lines and keeps them in memory.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer builds a tracer writing to w; a nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns the spans recorded so far.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: time.Now().UTC()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
	once      sync.Once
}

func (s *jsonTraceSpan) End(err error) {
	s.once.Do(func() {
		ended := time.Now().UTC()
		entry := JSONTraceEntry{
			Operation:  s.operation,
			Status:     string(AuditStatusSuccess),
			DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
			StartedAt:  s.started,
			EndedAt:    ended,
		}
		if err != nil {
			entry.Status = string(AuditStatusError)
			entry.Error = err.Error()
		}
		s.tracer.mu.Lock()
		defer s.tracer.mu.Unlock()
		s.tracer.entries = append(s.tracer.entries, entry)
		if s.tracer.enc != nil {
			_ = s.tracer.enc.Encode(entry)
		}
	})
}

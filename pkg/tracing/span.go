// Package tracing provides a lightweight span-based tracing system that
// propagates trace context through Go contexts. Spans form parent–child trees
// and are logged as structured records via slog when the root finishes.
package tracing

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span represents a timed operation within a trace. All methods accept a
// nil receiver, which is what callers get when tracing is off.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	mu        sync.Mutex
	logger    *slog.Logger
}

// Tracer decides which requests are traced and where finished traces go.
type Tracer struct {
	sampleRate float64
	logger     *slog.Logger
}

// NewTracer returns nil when tracing is disabled.
func NewTracer(cfg config.TracingConfig) *Tracer {
	if !cfg.Enabled || cfg.SampleRate <= 0 {
		return nil
	}
	return &Tracer{
		sampleRate: min(cfg.SampleRate, 1),
		logger:     slog.Default().With("component", "tracing"),
	}
}

// Start begins a sampled root span. Unsampled requests get a nil span and
// the unchanged context.
func (t *Tracer) Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	if t == nil || (t.sampleRate < 1 && rand.Float64() >= t.sampleRate) {
		return ctx, nil
	}
	ctx, span := StartSpan(ctx, name, traceID)
	span.logger = t.logger
	return ctx, span
}

// StartSpan creates a new root span and stores it in the returned context.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Children:  make([]*Span, 0),
		Attrs:     make(map[string]any),
	}
	return context.WithValue(ctx, spanKey, span), span
}

// StartChildSpan creates a child of the span in ctx. Without a parent it
// returns ctx and a nil span.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := spanFromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	child := &Span{
		Name:      name,
		TraceID:   parent.TraceID,
		StartTime: time.Now(),
		Children:  make([]*Span, 0),
		Attrs:     make(map[string]any),
	}
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey, child), child
}

// End records the span's end time and duration.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	s.mu.Unlock()
}

// Finish ends a root span and logs the whole tree.
func (s *Span) Finish() {
	if s == nil {
		return
	}
	s.End()
	s.log()
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

func spanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

func (s *Span) log() {
	if s == nil {
		return
	}
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	s.logRecursive(logger, 0)
}

func (s *Span) logRecursive(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", float64(s.Duration.Microseconds()) / 1000,
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()
	logger.Info("span", attrs...)

	for _, child := range children {
		child.logRecursive(logger, depth+1)
	}
}

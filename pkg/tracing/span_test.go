package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "trace-1")
	_, child := StartChildSpan(ctx, "lookup")
	child.SetAttr("candidates", 3)
	child.End()
	root.End()

	require.Len(t, root.Children, 1)
	assert.Equal(t, "trace-1", child.TraceID)
	assert.Equal(t, 3, child.Attrs["candidates"])
	assert.GreaterOrEqual(t, root.Duration, child.Duration)
	assert.Same(t, root, spanFromContext(ctx))
}

func TestNilSpanIsSafe(t *testing.T) {
	ctx, child := StartChildSpan(context.Background(), "orphan")
	assert.Nil(t, child)
	assert.Nil(t, spanFromContext(ctx))
	child.SetAttr("k", "v")
	child.End()
	child.Finish()
}

func TestTracerDisabled(t *testing.T) {
	assert.Nil(t, NewTracer(config.TracingConfig{Enabled: false, SampleRate: 1}))
	assert.Nil(t, NewTracer(config.TracingConfig{Enabled: true, SampleRate: 0}))

	var tracer *Tracer
	ctx, span := tracer.Start(context.Background(), "search", "id")
	assert.Nil(t, span)
	assert.Nil(t, spanFromContext(ctx))
}

func TestTracerLogsFinishedTree(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewTracer(config.TracingConfig{Enabled: true, SampleRate: 1})
	require.NotNil(t, tracer)
	tracer.logger = slog.New(slog.NewTextHandler(&buf, nil))

	ctx, root := tracer.Start(context.Background(), "search", "req-9")
	_, child := StartChildSpan(ctx, "rank")
	child.End()
	root.Finish()

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "trace_id=req-9")
	assert.Contains(t, out, "span=rank")
}

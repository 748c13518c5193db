package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

func TestHandleMessageIndexesEvents(t *testing.T) {
	ctx := context.Background()
	engine, err := indexer.NewEngine(ctx, store.NewMemoryBackend(), indexer.Options{
		Store: store.Options{DedupByHash: true},
	})
	require.NoError(t, err)
	defer engine.Close()

	agg := analytics.NewAggregator()
	m := metrics.New(prometheus.NewRegistry())
	handle := HandleMessage(engine, agg, m)

	require.NoError(t, handle(ctx, []byte("k1"), []byte(`{"title":"fox","body":"the quick brown fox"}`)))
	assert.Equal(t, 1, engine.DocumentCount())

	res, err := engine.Search(ctx, "fox", 10)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)

	// Poison messages are acknowledged without touching the index.
	assert.NoError(t, handle(ctx, []byte("k2"), []byte(`{not json`)))
	assert.NoError(t, handle(ctx, []byte("k3"), []byte(`{"title":"empty","body":"   "}`)))
	assert.NoError(t, handle(ctx, []byte("k4"), []byte(`{"title":"again","body":"the quick brown fox"}`)))
	assert.Equal(t, 1, engine.DocumentCount())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexDocuments))
	assert.Equal(t, int64(1), agg.Stats().DocumentsAdded)
}

type failingEngine struct{}

func (failingEngine) AddDocument(context.Context, string, string) (store.Document, error) {
	return store.Document{}, errors.New("disk full")
}

func (failingEngine) DocumentCount() int { return 0 }

func TestHandleMessageReturnsRetryableErrors(t *testing.T) {
	handle := HandleMessage(failingEngine{}, nil, nil)
	err := handle(context.Background(), []byte("k"), []byte(`{"title":"t","body":"b"}`))
	assert.ErrorContains(t, err, "disk full")
}

package rpcapi

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/rpc"
)

func newClient(t *testing.T, opts indexer.Options) *rpc.Client {
	t.Helper()
	e, err := indexer.NewEngine(context.Background(), store.NewMemoryBackend(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	s := rpc.NewServer()
	Register(s, e, 10, 50)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.ServeListener(ln)
	t.Cleanup(s.Stop)

	c, err := rpc.Dial(ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDocumentAndSearchServices(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, indexer.Options{})

	var fox, dog proto.Document
	require.NoError(t, c.Call(ctx, "DocumentService.Add", proto.AddDocumentRequest{Title: "Fox", Body: "the quick brown fox"}, &fox))
	require.NoError(t, c.Call(ctx, "DocumentService.Add", proto.AddDocumentRequest{Title: "Dog", Body: "the lazy dog"}, &dog))
	assert.Equal(t, uint64(1), fox.ID)
	assert.Equal(t, 4, fox.Length)

	var got proto.Document
	require.NoError(t, c.Call(ctx, "DocumentService.Get", proto.DocumentRequest{ID: dog.ID}, &got))
	assert.Equal(t, "the lazy dog", got.Body)

	var res proto.SearchResponse
	require.NoError(t, c.Call(ctx, "SearchService.Search", proto.SearchRequest{Query: "fox"}, &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, fox.ID, res.Results[0].DocID)
	assert.Equal(t, "Fox", res.Results[0].Title)
	assert.Greater(t, res.Results[0].Score, 0.0)

	res = proto.SearchResponse{}
	require.NoError(t, c.Call(ctx, "SearchService.Search", proto.SearchRequest{Query: "the NOT lazy", Syntax: "boolean"}, &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, fox.ID, res.Results[0].DocID)

	var removed proto.RemoveDocumentResponse
	require.NoError(t, c.Call(ctx, "DocumentService.Remove", proto.DocumentRequest{ID: fox.ID}, &removed))
	assert.True(t, removed.Removed)

	err := c.Call(ctx, "DocumentService.Get", proto.DocumentRequest{ID: fox.ID}, &got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	err = c.Call(ctx, "DocumentService.Remove", proto.DocumentRequest{ID: fox.ID}, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	res = proto.SearchResponse{}
	require.NoError(t, c.Call(ctx, "SearchService.Search", proto.SearchRequest{Query: "fox"}, &res))
	assert.Empty(t, res.Results)
}

func TestSearchArgumentErrors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, indexer.Options{})

	err := c.Call(ctx, "SearchService.Search", proto.SearchRequest{Query: "fox", Limit: -1}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	err = c.Call(ctx, "SearchService.Search", proto.SearchRequest{Query: "fox", Syntax: "regex"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	err = c.Call(ctx, "DocumentService.Get", "not-an-object", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestIndexService(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := newClient(t, indexer.Options{DataDir: dir})

	require.NoError(t, c.Call(ctx, "DocumentService.Add", proto.AddDocumentRequest{Body: "red apple"}, nil))
	require.NoError(t, c.Call(ctx, "DocumentService.Add", proto.AddDocumentRequest{Body: "green apple pie"}, nil))

	var stats proto.StatsResponse
	require.NoError(t, c.Call(ctx, "IndexService.Stats", nil, &stats))
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 4, stats.Terms)
	assert.Equal(t, int64(5), stats.TotalLength)
	assert.InDelta(t, 2.5, stats.AverageDocumentLength, 1e-9)
	assert.Equal(t, uint64(2), stats.Generation)
	assert.Zero(t, stats.LastCheckpoint)

	var cp proto.CheckpointResponse
	require.NoError(t, c.Call(ctx, "IndexService.Checkpoint", nil, &cp))
	assert.True(t, cp.Written)
	assert.FileExists(t, cp.Path)

	require.NoError(t, c.Call(ctx, "IndexService.Stats", nil, &stats))
	assert.NotZero(t, stats.LastCheckpoint)
}

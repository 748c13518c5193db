package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func newTestServer(t *testing.T, bodies map[string]string) *Server {
	t.Helper()
	ctx := context.Background()
	e, err := indexer.NewEngine(ctx, store.NewMemoryBackend(), indexer.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	for _, title := range []string{"fox", "dog", "apple"} {
		if body, ok := bodies[title]; ok {
			_, err := e.AddDocument(ctx, title, body)
			require.NoError(t, err)
		}
	}
	s, err := NewServer(e, 2)
	require.NoError(t, err)
	return s
}

func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

var corpus = map[string]string{
	"fox":   "the quick brown fox",
	"dog":   "the lazy dog",
	"apple": "red apple",
}

func TestNewServerRequiresEngine(t *testing.T) {
	_, err := NewServer(nil, 10)
	assert.ErrorIs(t, err, ErrMissingEngine)
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t, corpus)

	t.Run("returns ranked results", func(t *testing.T) {
		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "fox"})
		require.NoError(t, err)
		require.Equal(t, 1, output.Count)
		assert.Equal(t, uint64(1), output.Results[0].DocumentID)
		assert.Equal(t, "fox", output.Results[0].Title)
		assert.Equal(t, "docsearch://documents/1", output.Results[0].URI)
		assert.Greater(t, output.Results[0].Score, 0.0)
	})

	t.Run("limit capped at max results", func(t *testing.T) {
		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "the apple", Limit: 50})
		require.NoError(t, err)
		assert.Equal(t, 3, output.TotalHits)
		assert.Equal(t, 2, output.Count)
	})

	t.Run("boolean syntax", func(t *testing.T) {
		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "the NOT lazy", Syntax: "boolean"})
		require.NoError(t, err)
		require.Equal(t, 1, output.Count)
		assert.Equal(t, "fox", output.Results[0].Title)
	})

	t.Run("unknown syntax", func(t *testing.T) {
		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "fox", Syntax: "regex"})
		assert.Error(t, err)
	})

	t.Run("no match", func(t *testing.T) {
		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "xyzzy123"})
		require.NoError(t, err)
		assert.Zero(t, output.Count)
		assert.Empty(t, output.Results)
	})
}

func TestServer_handleGetDocument(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t, corpus)

	_, doc, err := server.handleGetDocument(ctx, nil, GetDocumentInput{DocumentID: 2})
	require.NoError(t, err)
	assert.Equal(t, "dog", doc.Title)
	assert.Equal(t, "the lazy dog", doc.Body)
	assert.Equal(t, 3, doc.Length)

	_, _, err = server.handleGetDocument(ctx, nil, GetDocumentInput{DocumentID: 99})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestServer_handleDocumentsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("lists documents", func(t *testing.T) {
		server := newTestServer(t, corpus)
		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docsearch://documents"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, `"title": "apple"`)
		assert.Contains(t, result.Contents[0].Text, "docsearch://documents/3")
	})

	t.Run("empty collection", func(t *testing.T) {
		server := newTestServer(t, nil)
		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docsearch://documents"))
		require.NoError(t, err)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})
}

func TestServer_handleDocumentContentResource(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t, corpus)

	result, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("docsearch://documents/1"))
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "the quick brown fox", result.Contents[0].Text)
	assert.Equal(t, "text/plain", result.Contents[0].MIMEType)

	for _, uri := range []string{"docsearch://documents/42", "docsearch://documents/abc", "file://documents/1"} {
		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest(uri))
		assert.Error(t, err, uri)
	}
}

func TestExtractDocumentID(t *testing.T) {
	tests := []struct {
		name   string
		uri    string
		id     uint64
		wantOK bool
	}{
		{name: "valid document URI", uri: "docsearch://documents/17", id: 17, wantOK: true},
		{name: "invalid prefix", uri: "file://documents/17"},
		{name: "non numeric id", uri: "docsearch://documents/doc-17"},
		{name: "empty URI", uri: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := extractDocumentID(tt.uri)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

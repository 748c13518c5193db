// Package mcp exposes the document collection to MCP clients as a
// read-only content endpoint: a search tool, a document lookup tool and
// document resources.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
)

// Version is the MCP server version.
const Version = "0.1.0"

// ErrMissingEngine is returned when NewServer is given no engine.
var ErrMissingEngine = errors.New("mcp: engine is required")

// Engine is the read side of indexer.Engine.
type Engine interface {
	Plan(query string, boolean bool) *parser.QueryPlan
	Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
	GetDocument(id uint64) (store.Document, error)
	Documents(offset, limit int) []store.Document
}

type Server struct {
	engine     Engine
	maxResults int
	server     *mcp.Server
	logger     *slog.Logger
}

// NewServer creates the MCP server. Search limits are capped at maxResults.
func NewServer(engine Engine, maxResults int) (*Server, error) {
	if engine == nil {
		return nil, ErrMissingEngine
	}
	if maxResults < 1 {
		maxResults = 100
	}
	s := &Server{
		engine:     engine,
		maxResults: maxResults,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "docsearch",
			Version: Version,
		}, nil),
		logger: slog.Default().With("component", "mcp"),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves MCP over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server running on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves MCP over streamable HTTP on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("mcp http shutdown failed", "error", err)
		}
	}()

	s.logger.Info("mcp server listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mcp http server: %w", err)
	}
	return nil
}

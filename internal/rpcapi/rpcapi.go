// Package rpcapi exposes the engine over pkg/rpc as the DocumentService,
// SearchService and IndexService methods.
package rpcapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/rpc"
)

// Engine is the part of indexer.Engine the RPC services call.
type Engine interface {
	AddDocument(ctx context.Context, title, body string) (store.Document, error)
	RemoveDocument(ctx context.Context, id uint64) error
	GetDocument(id uint64) (store.Document, error)
	Plan(query string, boolean bool) *parser.QueryPlan
	Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
	Stats() indexer.Stats
	Checkpoint() (string, error)
}

var _ Engine = (*indexer.Engine)(nil)

type Service struct {
	engine       Engine
	defaultLimit int
	maxResults   int
}

// Register installs every service method on s.
func Register(s *rpc.Server, e Engine, defaultLimit, maxResults int) *Service {
	svc := &Service{engine: e, defaultLimit: defaultLimit, maxResults: maxResults}
	s.Register("DocumentService.Add", svc.addDocument)
	s.Register("DocumentService.Get", svc.getDocument)
	s.Register("DocumentService.Remove", svc.removeDocument)
	s.Register("SearchService.Search", svc.search)
	s.Register("IndexService.Stats", svc.stats)
	s.Register("IndexService.Checkpoint", svc.checkpoint)
	return svc
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.InvalidArgument("malformed params: %v", err)
	}
	return nil
}

func toProto(doc store.Document) *proto.Document {
	return &proto.Document{
		ID:          doc.ID,
		Title:       doc.Title,
		Body:        doc.Body,
		Length:      doc.Length,
		ContentHash: doc.ContentHash,
		CreatedAt:   doc.CreatedAt.Unix(),
	}
}

func (s *Service) addDocument(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.AddDocumentRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	doc, err := s.engine.AddDocument(ctx, req.Title, req.Body)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("document added over rpc", "doc_id", doc.ID)
	return toProto(doc), nil
}

func (s *Service) getDocument(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.DocumentRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	doc, err := s.engine.GetDocument(req.ID)
	if err != nil {
		return nil, err
	}
	return toProto(doc), nil
}

func (s *Service) removeDocument(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.DocumentRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if err := s.engine.RemoveDocument(ctx, req.ID); err != nil {
		return nil, err
	}
	return &proto.RemoveDocumentResponse{Removed: true}, nil
}

func (s *Service) search(ctx context.Context, raw json.RawMessage) (any, error) {
	start := time.Now()
	var req proto.SearchRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	limit := req.Limit
	switch {
	case limit == 0:
		limit = s.defaultLimit
	case limit > s.maxResults:
		limit = s.maxResults
	}
	var boolean bool
	switch req.Syntax {
	case "", "plain":
	case "boolean":
		boolean = true
	default:
		return nil, apperrors.InvalidArgument("syntax must be plain or boolean, got %q", req.Syntax)
	}

	result, err := s.engine.Execute(ctx, s.engine.Plan(req.Query, boolean), limit)
	if err != nil {
		return nil, err
	}
	resp := &proto.SearchResponse{
		Query:     req.Query,
		TotalHits: result.TotalHits,
		Results:   make([]proto.SearchResult, 0, len(result.Results)),
	}
	for _, r := range result.Results {
		item := proto.SearchResult{DocID: r.DocID, Score: r.Score}
		if doc, err := s.engine.GetDocument(r.DocID); err == nil {
			item.Title = doc.Title
		}
		resp.Results = append(resp.Results, item)
	}
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, nil
}

func (s *Service) stats(ctx context.Context, _ json.RawMessage) (any, error) {
	st := s.engine.Stats()
	resp := &proto.StatsResponse{
		Documents:             st.Index.DocumentCount,
		Terms:                 st.Index.TermCount,
		TotalLength:           st.Index.TotalLength,
		AverageDocumentLength: st.Index.AverageDocumentLength,
		Generation:            st.Generation,
		IndexSizeBytes:        st.IndexSizeBytes,
	}
	if !st.LastCheckpoint.IsZero() {
		resp.LastCheckpoint = st.LastCheckpoint.Unix()
	}
	return resp, nil
}

func (s *Service) checkpoint(ctx context.Context, _ json.RawMessage) (any, error) {
	path, err := s.engine.Checkpoint()
	if err != nil {
		return nil, err
	}
	if path != "" {
		logger.FromContext(ctx).Info("checkpoint written over rpc", "checkpoint", path)
	}
	return &proto.CheckpointResponse{Written: path != "", Path: path}, nil
}

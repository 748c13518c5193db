// Package executor evaluates query plans against the inverted index and
// ranks the matching documents.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	TermStats map[string]int     `json:"term_stats"`
}

// Index is the read side of the inverted index.
type Index interface {
	View(fn func(r index.Reader) error) error
}

type Executor struct {
	index  Index
	ranker *ranker.Ranker
	logger *slog.Logger
}

func New(idx Index, rnk *ranker.Ranker) *Executor {
	return &Executor{
		index:  idx,
		ranker: rnk,
		logger: slog.Default().With("component", "query-executor"),
	}
}

func EmptyResult(query string) *SearchResult {
	return &SearchResult{
		Query:     query,
		Results:   []ranker.ScoredDoc{},
		TermStats: map[string]int{},
	}
}

// Execute runs plan against one consistent view of the index and returns
// at most limit results.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if limit <= 0 {
		return nil, apperrors.InvalidArgument("limit must be positive, got %d", limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if plan.Empty() {
		return EmptyResult(plan.RawQuery), nil
	}

	result := EmptyResult(plan.RawQuery)
	err := e.index.View(func(r index.Reader) error {
		_, lookup := tracing.StartChildSpan(ctx, "executor.lookup")
		terms := make([]ranker.TermPostings, 0, len(plan.Terms))
		lists := make([]index.PostingList, 0, len(plan.Terms))
		missing := false
		for _, term := range plan.Terms {
			postings := r.PostingsFor(term)
			result.TermStats[term] = len(postings)
			if len(postings) == 0 {
				missing = true
				continue
			}
			terms = append(terms, ranker.TermPostings{
				Term:     term,
				DocFreq:  len(postings),
				Postings: postings,
			})
			lists = append(lists, postings)
		}

		var candidates []uint64
		switch {
		case len(lists) == 0, plan.Type == parser.QueryAND && missing:
		case plan.Type == parser.QueryAND:
			candidates = index.Intersect(lists...)
		default:
			candidates = index.Union(lists...)
		}
		if len(candidates) > 0 && len(plan.ExcludeTerms) > 0 {
			candidates = exclude(candidates, excludedDocs(r, plan.ExcludeTerms))
		}
		lookup.SetAttr("candidates", len(candidates))
		lookup.End()

		if len(candidates) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		_, rank := tracing.StartChildSpan(ctx, "executor.rank")
		stats := r.Stats()
		docLength := func(docID uint64) int {
			n, ok := r.DocLength(docID)
			if !ok {
				panic(fmt.Sprintf("executor: posting references unindexed document %d", docID))
			}
			return n
		}
		result.Results = e.ranker.Rank(terms, candidates, ranker.CorpusStats{
			TotalDocs:    int64(stats.DocumentCount),
			AvgDocLength: stats.AverageDocumentLength,
		}, docLength, limit)
		result.TotalHits = len(candidates)
		rank.SetAttr("results", len(result.Results))
		rank.End()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"type", plan.Type.String(),
		"terms", plan.Terms,
		"candidates", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

func excludedDocs(r index.Reader, terms []string) *roaring64.Bitmap {
	excluded := roaring64.New()
	for _, term := range terms {
		for _, p := range r.PostingsFor(term) {
			excluded.Add(p.DocID)
		}
	}
	return excluded
}

func exclude(candidates []uint64, excluded *roaring64.Bitmap) []uint64 {
	if excluded.IsEmpty() {
		return candidates
	}
	out := candidates[:0]
	for _, id := range candidates {
		if !excluded.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

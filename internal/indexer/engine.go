// Package indexer wires the tokenizer, document store, inverted index,
// ranker and query executor into one Engine, and persists index
// checkpoints so a restart with a persistent store does not re-tokenize
// the corpus.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

// Options configures an Engine. An empty DataDir disables checkpoints.
type Options struct {
	Tokenizer         tokenizer.Options
	Ranker            ranker.Params
	Store             store.Options
	DataDir           string
	CheckpointsToKeep int
	RestoreCheckpoint bool
	// OnCheckpoint, if set, is called after every checkpoint attempt.
	OnCheckpoint func(path string, err error)
}

// OptionsFromConfig maps the application config onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Tokenizer: tokenizer.Options{
			StopWords: cfg.Tokenizer.StopWords,
			Stem:      cfg.Tokenizer.Stem,
			MinLength: cfg.Tokenizer.MinLength,
		},
		Ranker: ranker.Params{K1: cfg.Search.K1, B: cfg.Search.B},
		Store: store.Options{
			DedupByHash: cfg.Storage.DedupByHash,
		},
		DataDir:           cfg.Index.DataDir,
		CheckpointsToKeep: cfg.Index.CheckpointsToKeep,
		RestoreCheckpoint: cfg.Index.RestoreCheckpoint,
	}
}

// Stats describes the engine at one point in time.
type Stats struct {
	Index          index.Stats `json:"index"`
	Documents      int         `json:"documents"`
	Epoch          string      `json:"epoch"`
	Generation     uint64      `json:"generation"`
	IndexSizeBytes int64       `json:"index_size_bytes"`
	LastCheckpoint time.Time   `json:"last_checkpoint,omitempty"`
	K1             float64     `json:"k1"`
	B              float64     `json:"b"`
}

type Engine struct {
	tok      *tokenizer.Tokenizer
	memIndex *index.MemoryIndex
	store    *store.Store
	ranker   *ranker.Ranker
	executor *executor.Executor
	writer   *segment.Writer
	opts     Options
	logger   *slog.Logger

	epoch      string
	generation atomic.Uint64

	checkpointMu   sync.Mutex
	checkpointGen  uint64
	lastCheckpoint time.Time
}

// NewEngine loads every document persisted by backend and brings the
// index up to date with them, from a checkpoint when one matches and by
// re-tokenizing otherwise.
func NewEngine(ctx context.Context, backend store.Backend, opts Options) (*Engine, error) {
	if opts.Ranker == (ranker.Params{}) {
		opts.Ranker = ranker.DefaultParams()
	}
	if err := opts.Ranker.Validate(); err != nil {
		return nil, err
	}
	if opts.CheckpointsToKeep < 1 {
		opts.CheckpointsToKeep = 1
	}
	tok := tokenizer.New(opts.Tokenizer)
	memIndex := index.NewMemoryIndex()
	rnk := ranker.New(opts.Ranker)
	e := &Engine{
		tok:      tok,
		memIndex: memIndex,
		store:    store.New(backend, memIndex, tok, opts.Store),
		ranker:   rnk,
		executor: executor.New(memIndex, rnk),
		opts:     opts,
		epoch:    uuid.NewString(),
		logger:   slog.Default().With("component", "engine"),
	}
	if opts.DataDir != "" {
		e.writer = segment.NewWriter(opts.DataDir, tok.Signature())
	}
	if err := e.recover(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) recover(ctx context.Context) error {
	count, err := e.store.Load(ctx, false)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	if e.opts.RestoreCheckpoint && e.writer != nil {
		restored, err := e.restoreLatest()
		if err != nil {
			e.logger.Warn("checkpoint restore failed, rebuilding index", "error", err)
		}
		if restored {
			return nil
		}
	}
	start := time.Now()
	if err := e.store.Reindex(ctx); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	e.logger.Info("index rebuilt from store",
		"documents", count,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// restoreLatest loads the newest checkpoint if it was built by the same
// tokenizer configuration and describes exactly the documents the store
// holds.
func (e *Engine) restoreLatest() (bool, error) {
	paths, err := segment.List(e.opts.DataDir)
	if err != nil || len(paths) == 0 {
		return false, err
	}
	path := paths[len(paths)-1]
	r, err := segment.OpenReader(path)
	if err != nil {
		return false, err
	}
	defer r.Close()

	if r.Analyzer() != e.tok.Signature() {
		e.logger.Info("checkpoint built with different tokenizer options", "checkpoint", path)
		return false, nil
	}
	ids := e.store.IDs()
	if r.MaxDocID() != ids.Maximum() {
		e.logger.Info("checkpoint is stale", "checkpoint", path, "checkpoint_max_id", r.MaxDocID(), "stored_max_id", ids.Maximum())
		return false, nil
	}
	docLens := r.DocLengths()
	if uint64(len(docLens)) != ids.GetCardinality() {
		e.logger.Info("checkpoint is stale", "checkpoint", path, "checkpoint_docs", len(docLens), "stored_docs", ids.GetCardinality())
		return false, nil
	}
	for id, n := range docLens {
		doc, err := e.store.Get(id)
		if err != nil || doc.Length != n {
			e.logger.Info("checkpoint is stale", "checkpoint", path, "doc_id", id)
			return false, nil
		}
	}
	entries, err := r.ReadAll()
	if err != nil {
		return false, err
	}
	if err := e.memIndex.Restore(entries, docLens); err != nil {
		e.memIndex.Reset()
		return false, err
	}
	e.checkpointMu.Lock()
	e.lastCheckpoint = r.CreatedAt()
	e.checkpointMu.Unlock()
	e.logger.Info("index restored from checkpoint",
		"checkpoint", path,
		"terms", r.Terms(),
		"docs", r.DocCount(),
	)
	return true, nil
}

// AddDocument stores and indexes a document. It is searchable as soon as
// AddDocument returns.
func (e *Engine) AddDocument(ctx context.Context, title, body string) (store.Document, error) {
	doc, err := e.store.Add(ctx, title, body)
	if err != nil {
		return store.Document{}, err
	}
	e.generation.Add(1)
	e.logger.Debug("document indexed",
		"doc_id", doc.ID,
		"token_count", doc.Length,
		"mem_size", e.memIndex.Size(),
	)
	return doc, nil
}

// RemoveDocument deletes a document. It no longer appears in any search
// once RemoveDocument returns.
func (e *Engine) RemoveDocument(ctx context.Context, id uint64) error {
	if err := e.store.Remove(ctx, id); err != nil {
		return err
	}
	e.generation.Add(1)
	return nil
}

func (e *Engine) GetDocument(id uint64) (store.Document, error) {
	return e.store.Get(id)
}

// FindByHash returns the id of a stored document whose body has the given
// content hash.
func (e *Engine) FindByHash(hash string) (uint64, bool) {
	return e.store.FindByHash(hash)
}

// Documents lists stored documents in id order.
func (e *Engine) Documents(offset, limit int) []store.Document {
	return e.store.List(offset, limit)
}

func (e *Engine) DocumentCount() int {
	return e.store.Len()
}

// Search matches any term of query and returns at most limit results
// ordered by descending BM25 score.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error) {
	return e.executor.Execute(ctx, parser.Plain(e.tok, query), limit)
}

// Plan normalises query with the engine's tokenizer. With boolean set the
// AND/OR/NOT syntax is recognised.
func (e *Engine) Plan(query string, boolean bool) *parser.QueryPlan {
	if boolean {
		return parser.Parse(e.tok, query)
	}
	return parser.Plain(e.tok, query)
}

func (e *Engine) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error) {
	return e.executor.Execute(ctx, plan, limit)
}

// Epoch is a random identifier fixed for the lifetime of the engine.
// Together with Generation it names one index state, also across restarts.
func (e *Engine) Epoch() string {
	return e.epoch
}

// Generation increases after every committed add or remove.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

func (e *Engine) Stats() Stats {
	e.checkpointMu.Lock()
	last := e.lastCheckpoint
	e.checkpointMu.Unlock()
	params := e.ranker.Params()
	return Stats{
		Index:          e.memIndex.Stats(),
		Documents:      e.store.Len(),
		Epoch:          e.epoch,
		Generation:     e.Generation(),
		IndexSizeBytes: e.memIndex.Size(),
		LastCheckpoint: last,
		K1:             params.K1,
		B:              params.B,
	}
}

// Index exposes the inverted index for read-only use.
func (e *Engine) Index() *index.MemoryIndex {
	return e.memIndex
}

func (e *Engine) Tokenizer() *tokenizer.Tokenizer {
	return e.tok
}

// Checkpoint writes the current index to a new checkpoint file and prunes
// old ones. It returns an empty path when checkpoints are disabled.
func (e *Engine) Checkpoint() (string, error) {
	if e.writer == nil {
		return "", nil
	}
	e.checkpointMu.Lock()
	defer e.checkpointMu.Unlock()

	gen := e.Generation()
	entries, docLens := e.memIndex.Snapshot()
	path, err := e.writer.Write(entries, docLens)
	if e.opts.OnCheckpoint != nil {
		e.opts.OnCheckpoint(path, err)
	}
	if err != nil {
		return "", fmt.Errorf("writing checkpoint: %w", err)
	}
	e.checkpointGen = gen
	e.lastCheckpoint = time.Now()
	removed, err := segment.Prune(e.opts.DataDir, e.opts.CheckpointsToKeep)
	if err != nil {
		e.logger.Error("pruning checkpoints failed", "error", err)
	}
	e.logger.Info("checkpoint written",
		"checkpoint", path,
		"terms", len(entries),
		"docs", len(docLens),
		"pruned", removed,
	)
	return path, nil
}

// dirty reports whether writes happened since the last checkpoint.
func (e *Engine) dirty() bool {
	e.checkpointMu.Lock()
	defer e.checkpointMu.Unlock()
	return e.Generation() != e.checkpointGen
}

// StartCheckpointLoop writes a checkpoint every interval while the index
// has changed, and a final one when ctx is cancelled.
func (e *Engine) StartCheckpointLoop(ctx context.Context, interval time.Duration) {
	if e.writer == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("checkpoint loop stopping")
				return
			case <-ticker.C:
				if !e.dirty() {
					continue
				}
				if _, err := e.Checkpoint(); err != nil {
					e.logger.Error("periodic checkpoint failed", "error", err)
				}
			}
		}
	}()
}

// Close writes a final checkpoint if the index changed and closes the
// store backend.
func (e *Engine) Close() error {
	if e.writer != nil && e.dirty() {
		if _, err := e.Checkpoint(); err != nil {
			e.logger.Error("final checkpoint on close failed", "error", err)
		}
	}
	return e.store.Close()
}

// Package store owns canonical document bodies and metadata, assigns
// document ids through a Backend and keeps the inverted index in step with
// every add and remove.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

type Document struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Length      int       `json:"length"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewDocument is what a Backend persists; the backend assigns the id.
type NewDocument struct {
	Title       string
	Body        string
	Length      int
	ContentHash string
	CreatedAt   time.Time
}

// Backend persists documents. Ids returned by Insert must be positive,
// strictly increasing and never reused. Load yields documents in ascending
// id order.
type Backend interface {
	Insert(ctx context.Context, doc NewDocument) (uint64, error)
	Delete(ctx context.Context, id uint64) error
	Load(ctx context.Context, fn func(Document) error) error
	Close() error
}

// Indexer is notified synchronously of every document change.
type Indexer interface {
	Ingest(docID uint64, tokens []tokenizer.Token) error
	Evict(docID uint64) error
}

type Options struct {
	// DedupByHash rejects a body identical to one already stored.
	DedupByHash bool
}

type Store struct {
	// writeMu serialises Add and Remove including the index update.
	writeMu sync.Mutex
	// mu guards the maps below for readers.
	mu      sync.RWMutex
	docs    map[uint64]*Document
	byHash  map[string]uint64
	ids     *roaring64.Bitmap
	backend Backend
	index   Indexer
	tok     *tokenizer.Tokenizer
	opts    Options
	logger  *slog.Logger
}

func New(backend Backend, idx Indexer, tok *tokenizer.Tokenizer, opts Options) *Store {
	return &Store{
		docs:    make(map[uint64]*Document),
		byHash:  make(map[string]uint64),
		ids:     roaring64.New(),
		backend: backend,
		index:   idx,
		tok:     tok,
		opts:    opts,
		logger:  slog.Default().With("component", "document-store"),
	}
}

// Add stores a new document and indexes its body before returning.
func (s *Store) Add(ctx context.Context, title, body string) (Document, error) {
	tokens := s.tok.Tokenize(body)
	hash := ContentHash(body)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.opts.DedupByHash {
		if existing, dup := s.FindByHash(hash); dup {
			return Document{}, apperrors.Duplicate(existing)
		}
	}

	now := time.Now().UTC()
	id, err := s.backend.Insert(ctx, NewDocument{
		Title:       title,
		Body:        body,
		Length:      len(tokens),
		ContentHash: hash,
		CreatedAt:   now,
	})
	if err != nil {
		return Document{}, fmt.Errorf("storing document: %w", err)
	}
	doc := &Document{
		ID:          id,
		Title:       title,
		Body:        body,
		Length:      len(tokens),
		ContentHash: hash,
		CreatedAt:   now,
	}
	s.put(doc)

	if err := s.index.Ingest(id, tokens); err != nil {
		s.drop(doc)
		if delErr := s.backend.Delete(context.WithoutCancel(ctx), id); delErr != nil {
			s.logger.Error("rolling back document insert failed", "doc_id", id, "error", delErr)
		}
		return Document{}, fmt.Errorf("indexing document %d: %w", id, err)
	}
	s.logger.Debug("document added", "doc_id", id, "length", doc.Length)
	return *doc, nil
}

func (s *Store) Get(id uint64) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return Document{}, apperrors.NotFound(id)
	}
	return *doc, nil
}

// Remove deletes the document and purges its postings before returning.
func (s *Store) Remove(ctx context.Context, id uint64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return apperrors.NotFound(id)
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	if err := s.index.Evict(id); err != nil {
		panic(fmt.Sprintf("store: stored document %d missing from index: %v", id, err))
	}
	s.drop(doc)
	s.logger.Debug("document removed", "doc_id", id)
	return nil
}

// List returns up to limit documents in ascending id order, skipping the
// first offset. A limit of zero or less means no limit.
func (s *Store) List(offset, limit int) []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, 0)
	if offset < 0 {
		offset = 0
	}
	it := s.ids.Iterator()
	for i := 0; it.HasNext(); i++ {
		id := it.Next()
		if i < offset {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, *s.docs[id])
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// IDs returns a copy of the live document id set.
func (s *Store) IDs() *roaring64.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids.Clone()
}

// FindByHash returns the id of a stored document with the given content
// hash, if any.
func (s *Store) FindByHash(hash string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[hash]
	return id, ok
}

// Load reads every persisted document from the backend. With reindex set
// each document is also ingested into the index.
func (s *Store) Load(ctx context.Context, reindex bool) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	count := 0
	err := s.backend.Load(ctx, func(doc Document) error {
		d := doc
		s.put(&d)
		if reindex {
			if err := s.index.Ingest(d.ID, s.tok.Tokenize(d.Body)); err != nil {
				return fmt.Errorf("indexing document %d: %w", d.ID, err)
			}
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("loading documents: %w", err)
	}
	s.logger.Info("documents loaded", "count", count, "reindexed", reindex)
	return count, nil
}

// Reindex ingests every stored document into the index.
func (s *Store) Reindex(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	it := s.ids.Iterator()
	for it.HasNext() {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := s.docs[it.Next()]
		if err := s.index.Ingest(doc.ID, s.tok.Tokenize(doc.Body)); err != nil {
			return fmt.Errorf("indexing document %d: %w", doc.ID, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) put(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	s.ids.Add(doc.ID)
	if _, exists := s.byHash[doc.ContentHash]; !exists {
		s.byHash[doc.ContentHash] = doc.ID
	}
}

func (s *Store) drop(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, doc.ID)
	s.ids.Remove(doc.ID)
	if s.byHash[doc.ContentHash] == doc.ID {
		delete(s.byHash, doc.ContentHash)
	}
}

// ContentHash is the hex SHA-256 of body.
func ContentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

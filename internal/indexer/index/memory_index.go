package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

var (
	ErrAlreadyIndexed = errors.New("document already indexed")
	ErrNotIndexed     = errors.New("document not indexed")
)

// Reader is a read-only view of the index. Values obtained from a Reader
// must not be retained after the View callback returns.
type Reader interface {
	PostingsFor(term string) PostingList
	DocLength(docID uint64) (int, bool)
	Contains(docID uint64) bool
	Stats() Stats
}

type MemoryIndex struct {
	mu       sync.RWMutex
	index    map[string]PostingList
	docTerms map[uint64][]string
	docLens  map[uint64]int
	live     *roaring64.Bitmap
	totalLen int64
	size     int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index:    make(map[string]PostingList),
		docTerms: make(map[uint64][]string),
		docLens:  make(map[uint64]int),
		live:     roaring64.New(),
	}
}

// Ingest adds one posting per distinct term of the document. The whole
// document becomes visible to readers at once.
func (m *MemoryIndex) Ingest(docID uint64, tokens []tokenizer.Token) error {
	termData := make(map[string]*Posting)
	terms := make([]string, 0)
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				DocID:     docID,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = p
			terms = append(terms, token.Term)
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docLens[docID]; exists {
		return fmt.Errorf("ingesting document %d: %w", docID, ErrAlreadyIndexed)
	}
	for _, term := range terms {
		posting := termData[term]
		m.index[term] = insertPosting(m.index[term], *posting)
		m.size += postingSize(term, posting)
	}
	m.docTerms[docID] = terms
	m.docLens[docID] = len(tokens)
	m.totalLen += int64(len(tokens))
	m.live.Add(docID)
	return nil
}

// Evict removes every posting of the document and drops terms left
// without postings.
func (m *MemoryIndex) Evict(docID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	terms, ok := m.docTerms[docID]
	if !ok {
		return fmt.Errorf("evicting document %d: %w", docID, ErrNotIndexed)
	}
	for _, term := range terms {
		list := m.index[term]
		i := search(list, docID)
		if i >= len(list) || list[i].DocID != docID {
			panic(fmt.Sprintf("index: term %q has no posting for indexed document %d", term, docID))
		}
		m.size -= postingSize(term, &list[i])
		if len(list) == 1 {
			delete(m.index, term)
			continue
		}
		copy(list[i:], list[i+1:])
		list[len(list)-1] = Posting{}
		m.index[term] = list[:len(list)-1]
	}
	m.totalLen -= int64(m.docLens[docID])
	delete(m.docTerms, docID)
	delete(m.docLens, docID)
	m.live.Remove(docID)
	return nil
}

// View runs fn against a consistent snapshot of the index. Writers are
// blocked until fn returns.
func (m *MemoryIndex) View(fn func(r Reader) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(view{m})
}

// PostingsFor returns a copy of the posting list for term, or nil.
func (m *MemoryIndex) PostingsFor(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.index[term]
	if len(list) == 0 {
		return nil
	}
	result := make(PostingList, len(list))
	copy(result, list)
	return result
}

func (m *MemoryIndex) DocFreq(term string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index[term])
}

func (m *MemoryIndex) DocLength(docID uint64) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.docLens[docID]
	return n, ok
}

func (m *MemoryIndex) Contains(docID uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live.Contains(docID)
}

func (m *MemoryIndex) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats()
}

// Snapshot returns every term entry sorted by term together with the
// document length table, both taken under one read lock.
func (m *MemoryIndex) Snapshot() ([]TermEntry, map[uint64]int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, list := range m.index {
		postings := make(PostingList, len(list))
		copy(postings, list)
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	docLens := make(map[uint64]int, len(m.docLens))
	for id, n := range m.docLens {
		docLens[id] = n
	}
	return entries, docLens
}

// Restore replaces the index content with previously exported state.
func (m *MemoryIndex) Restore(entries []TermEntry, docLens map[uint64]int) error {
	idx := make(map[string]PostingList, len(entries))
	docTerms := make(map[uint64][]string, len(docLens))
	live := roaring64.New()
	var totalLen, size int64
	for id, n := range docLens {
		docTerms[id] = make([]string, 0)
		live.Add(id)
		totalLen += int64(n)
	}
	for _, entry := range entries {
		if len(entry.Postings) == 0 {
			continue
		}
		var prev uint64
		for i := range entry.Postings {
			p := &entry.Postings[i]
			if _, ok := docLens[p.DocID]; !ok {
				return fmt.Errorf("term %q references unknown document %d", entry.Term, p.DocID)
			}
			if i > 0 && p.DocID <= prev {
				return fmt.Errorf("postings for term %q are not sorted by document id", entry.Term)
			}
			prev = p.DocID
			docTerms[p.DocID] = append(docTerms[p.DocID], entry.Term)
			size += postingSize(entry.Term, p)
		}
		idx[entry.Term] = entry.Postings
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = idx
	m.docTerms = docTerms
	m.docLens = docLens
	m.live = live
	m.totalLen = totalLen
	m.size = size
	return nil
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docLens)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]PostingList)
	m.docTerms = make(map[uint64][]string)
	m.docLens = make(map[uint64]int)
	m.live = roaring64.New()
	m.totalLen = 0
	m.size = 0
}

func (m *MemoryIndex) stats() Stats {
	s := Stats{
		DocumentCount: len(m.docLens),
		TotalLength:   m.totalLen,
		TermCount:     len(m.index),
	}
	if s.DocumentCount > 0 {
		s.AverageDocumentLength = float64(m.totalLen) / float64(s.DocumentCount)
	}
	return s
}

// view reads the index without locking; View holds the read lock.
type view struct {
	m *MemoryIndex
}

func (v view) PostingsFor(term string) PostingList {
	return v.m.index[term]
}

func (v view) DocLength(docID uint64) (int, bool) {
	n, ok := v.m.docLens[docID]
	return n, ok
}

func (v view) Contains(docID uint64) bool {
	return v.m.live.Contains(docID)
}

func (v view) Stats() Stats {
	return v.m.stats()
}

func search(list PostingList, docID uint64) int {
	return sort.Search(len(list), func(i int) bool {
		return list[i].DocID >= docID
	})
}

func insertPosting(list PostingList, p Posting) PostingList {
	n := len(list)
	if n == 0 || list[n-1].DocID < p.DocID {
		return append(list, p)
	}
	i := search(list, p.DocID)
	if list[i].DocID == p.DocID {
		panic(fmt.Sprintf("index: duplicate posting for document %d", p.DocID))
	}
	list = append(list, Posting{})
	copy(list[i+1:], list[i:])
	list[i] = p
	return list
}

func postingSize(term string, p *Posting) int64 {
	return int64(len(term) + 8 + len(p.Positions)*8 + 64)
}

package ranker

import (
	"container/heap"
)

// topK keeps the best limit documents seen so far. The heap root is the
// current worst entry so it can be evicted in O(log k).
type topK struct {
	limit int
	h     scoredDocHeap
}

func newTopK(limit int) *topK {
	return &topK{
		limit: limit,
		h:     make(scoredDocHeap, 0, limit),
	}
}

func (t *topK) offer(doc ScoredDoc) {
	if t.limit <= 0 {
		return
	}
	if t.h.Len() < t.limit {
		heap.Push(&t.h, doc)
		return
	}
	if worse(t.h[0], doc) {
		t.h[0] = doc
		heap.Fix(&t.h, 0)
	}
}

// sorted drains the heap into best-first order.
func (t *topK) sorted() []ScoredDoc {
	result := make([]ScoredDoc, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(ScoredDoc)
	}
	return result
}

// worse reports whether a ranks below b.
func worse(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}

type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return worse(h[i], h[j]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

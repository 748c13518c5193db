package index

import (
	"container/heap"
	"sort"
)

// Union returns the ascending, duplicate-free document ids present in any
// of the lists. It is a k-way merge over the already sorted lists.
func Union(lists ...PostingList) []uint64 {
	h := make(cursorHeap, 0, len(lists))
	total := 0
	for _, l := range lists {
		if len(l) > 0 {
			h = append(h, cursor{list: l})
			total += len(l)
		}
	}
	heap.Init(&h)
	out := make([]uint64, 0, total)
	for h.Len() > 0 {
		c := &h[0]
		id := c.list[c.pos].DocID
		if n := len(out); n == 0 || out[n-1] != id {
			out = append(out, id)
		}
		c.pos++
		if c.pos == len(c.list) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return out
}

// Intersect returns the ascending document ids present in every list.
// Any empty list yields an empty result.
func Intersect(lists ...PostingList) []uint64 {
	if len(lists) == 0 {
		return []uint64{}
	}
	ordered := make([]PostingList, len(lists))
	copy(ordered, lists)
	sort.Slice(ordered, func(i, j int) bool {
		return len(ordered[i]) < len(ordered[j])
	})
	result := ordered[0].DocIDs()
	for _, l := range ordered[1:] {
		if len(result) == 0 {
			break
		}
		result = intersectSorted(result, l)
	}
	return result
}

func intersectSorted(ids []uint64, l PostingList) []uint64 {
	out := ids[:0]
	i, j := 0, 0
	for i < len(ids) && j < len(l) {
		switch {
		case ids[i] == l[j].DocID:
			out = append(out, ids[i])
			i++
			j++
		case ids[i] < l[j].DocID:
			i++
		default:
			j++
		}
	}
	return out
}

type cursor struct {
	list PostingList
	pos  int
}

type cursorHeap []cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	return h[i].list[h[i].pos].DocID < h[j].list[h[j].pos].DocID
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x interface{}) {
	*h = append(*h, x.(cursor))
}

func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

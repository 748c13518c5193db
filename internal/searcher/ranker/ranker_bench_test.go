package ranker

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

func benchPostings(n, term int) index.PostingList {
	pl := make(index.PostingList, n)
	for i := range pl {
		pl[i] = index.Posting{
			DocID:     uint64(i + 1),
			Frequency: (i % 5) + 1,
			Positions: []int{term * 10},
		}
	}
	return pl
}

func benchCandidates(n int) []uint64 {
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = uint64(i + 1)
	}
	return ids
}

func BenchmarkRank(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	r := New(DefaultParams())
	docLen := func(uint64) int { return 180 }
	for _, n := range sizes {
		terms := []TermPostings{{Term: "search", Postings: benchPostings(n, 0)}}
		candidates := benchCandidates(n)
		stats := CorpusStats{TotalDocs: int64(n) * 10, AvgDocLength: 200}
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = r.Rank(terms, candidates, stats, docLen, 10)
			}
		})
	}
}

func BenchmarkRankMultiTerm(b *testing.B) {
	r := New(DefaultParams())
	docLen := func(uint64) int { return 180 }
	candidates := benchCandidates(500)
	stats := CorpusStats{TotalDocs: 5000, AvgDocLength: 200}
	for _, tc := range []int{1, 3, 5, 10} {
		terms := make([]TermPostings, tc)
		for t := range terms {
			terms[t] = TermPostings{Term: fmt.Sprintf("term%d", t), Postings: benchPostings(500, t)}
		}
		b.Run(fmt.Sprintf("terms_%d", tc), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = r.Rank(terms, candidates, stats, docLen, 10)
			}
		})
	}
}

package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// bm25 is a direct transcription of the scoring formula used as an oracle.
func bm25(k1, b float64, n, df, tf, docLen, avgdl float64) float64 {
	idf := math.Log((n-df+0.5)/(df+0.5) + 1)
	return idf * tf * (k1 + 1) / (tf + k1*(1-b+b*docLen/avgdl))
}

func lengths(m map[uint64]int) func(uint64) int {
	return func(id uint64) int { return m[id] }
}

func TestRankReferenceScores(t *testing.T) {
	// doc1: "the quick brown fox", doc2: "the lazy dog"
	r := New(DefaultParams())
	the := TermPostings{Term: "the", Postings: index.PostingList{
		{DocID: 1, Frequency: 1, Positions: []int{0}},
		{DocID: 2, Frequency: 1, Positions: []int{0}},
	}}
	stats := CorpusStats{TotalDocs: 2, AvgDocLength: 3.5}
	docLens := lengths(map[uint64]int{1: 4, 2: 3})

	got := r.Rank([]TermPostings{the}, []uint64{1, 2}, stats, docLens, 5)
	require.Len(t, got, 2)

	want1 := bm25(1.2, 0.75, 2, 2, 1, 4, 3.5)
	want2 := bm25(1.2, 0.75, 2, 2, 1, 3, 3.5)
	assert.Equal(t, uint64(2), got[0].DocID)
	assert.InDelta(t, want2, got[0].Score, 1e-12)
	assert.Equal(t, uint64(1), got[1].DocID)
	assert.InDelta(t, want1, got[1].Score, 1e-12)
	assert.InDelta(t, math.Log(1.2)*1.06207, got[0].Score, 1e-5)
	assert.InDelta(t, math.Log(1.2)*0.94479, got[1].Score, 1e-5)
}

func TestRankSumsOverTerms(t *testing.T) {
	r := New(DefaultParams())
	terms := []TermPostings{
		{Term: "fox", Postings: index.PostingList{{DocID: 1, Frequency: 2}}},
		{Term: "dog", Postings: index.PostingList{{DocID: 1, Frequency: 1}, {DocID: 3, Frequency: 1}}},
	}
	stats := CorpusStats{TotalDocs: 4, AvgDocLength: 5}
	docLens := lengths(map[uint64]int{1: 6, 3: 4})

	got := r.Rank(terms, []uint64{1, 3}, stats, docLens, 10)
	require.Len(t, got, 2)
	want := bm25(1.2, 0.75, 4, 1, 2, 6, 5) + bm25(1.2, 0.75, 4, 2, 1, 6, 5)
	assert.Equal(t, uint64(1), got[0].DocID)
	assert.InDelta(t, want, got[0].Score, 1e-12)
	assert.InDelta(t, bm25(1.2, 0.75, 4, 2, 1, 4, 5), got[1].Score, 1e-12)
}

func TestRankUsesCorpusDocFreq(t *testing.T) {
	r := New(DefaultParams())
	filtered := TermPostings{Term: "x", DocFreq: 3, Postings: index.PostingList{{DocID: 2, Frequency: 1}}}
	got := r.Rank([]TermPostings{filtered}, []uint64{2}, CorpusStats{TotalDocs: 10, AvgDocLength: 2}, lengths(map[uint64]int{2: 2}), 1)
	require.Len(t, got, 1)
	assert.InDelta(t, bm25(1.2, 0.75, 10, 3, 1, 2, 2), got[0].Score, 1e-12)
}

func TestRankTieBreaksByDocID(t *testing.T) {
	r := New(DefaultParams())
	postings := index.PostingList{}
	candidates := []uint64{}
	docLens := map[uint64]int{}
	for _, id := range []uint64{3, 7, 9, 12, 40} {
		postings = append(postings, index.Posting{DocID: id, Frequency: 1})
		candidates = append(candidates, id)
		docLens[id] = 3
	}
	stats := CorpusStats{TotalDocs: 10, AvgDocLength: 3}

	got := r.Rank([]TermPostings{{Term: "t", Postings: postings}}, candidates, stats, lengths(docLens), 3)
	require.Len(t, got, 3)
	assert.Equal(t, []uint64{3, 7, 9}, []uint64{got[0].DocID, got[1].DocID, got[2].DocID})
	assert.Equal(t, got[0].Score, got[2].Score)
}

func TestRankLimit(t *testing.T) {
	r := New(DefaultParams())
	postings := index.PostingList{
		{DocID: 1, Frequency: 1},
		{DocID: 2, Frequency: 5},
		{DocID: 3, Frequency: 3},
	}
	stats := CorpusStats{TotalDocs: 3, AvgDocLength: 5}
	docLens := lengths(map[uint64]int{1: 5, 2: 5, 3: 5})
	terms := []TermPostings{{Term: "t", Postings: postings}}

	top := r.Rank(terms, []uint64{1, 2, 3}, stats, docLens, 2)
	require.Len(t, top, 2)
	assert.Equal(t, uint64(2), top[0].DocID)
	assert.Equal(t, uint64(3), top[1].DocID)

	all := r.Rank(terms, []uint64{1, 2, 3}, stats, docLens, 0)
	assert.Len(t, all, 3)
}

func TestRankEmpty(t *testing.T) {
	r := New(DefaultParams())
	assert.Empty(t, r.Rank(nil, []uint64{1}, CorpusStats{TotalDocs: 1, AvgDocLength: 1}, lengths(nil), 10))
	assert.Empty(t, r.Rank([]TermPostings{{Term: "x"}}, nil, CorpusStats{}, lengths(nil), 10))
}

func TestScoreMonotonicInTermFrequency(t *testing.T) {
	r := New(DefaultParams())
	// "fox runs" becomes "fox fox runs" next to "cat sleeps here".
	before := r.Rank(
		[]TermPostings{{Term: "fox", Postings: index.PostingList{{DocID: 1, Frequency: 1}}}},
		[]uint64{1}, CorpusStats{TotalDocs: 2, AvgDocLength: 2.5}, lengths(map[uint64]int{1: 2}), 1)
	after := r.Rank(
		[]TermPostings{{Term: "fox", Postings: index.PostingList{{DocID: 1, Frequency: 2}}}},
		[]uint64{1}, CorpusStats{TotalDocs: 2, AvgDocLength: 3}, lengths(map[uint64]int{1: 3}), 1)
	require.Len(t, before, 1)
	require.Len(t, after, 1)
	assert.Greater(t, after[0].Score, before[0].Score)

	for tf := 1.0; tf < 50; tf++ {
		assert.LessOrEqual(t, r.TermWeight(tf, 10, 10), r.TermWeight(tf+1, 10, 10))
	}
}

func TestTermWeightZeroAverage(t *testing.T) {
	assert.Equal(t, 0.0, New(DefaultParams()).TermWeight(3, 0, 0))
}

func TestIDFAlwaysPositive(t *testing.T) {
	r := New(DefaultParams())
	for n := int64(1); n < 20; n++ {
		for df := int64(1); df <= n; df++ {
			assert.Greater(t, r.IDF(n, df), 0.0)
		}
	}
}

func TestCustomParams(t *testing.T) {
	r := New(Params{K1: 2.0, B: 0})
	got := r.TermWeight(1, 100, 10)
	assert.InDelta(t, 1.0, got, 1e-12)
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
	assert.NoError(t, Params{K1: 0, B: 1}.Validate())
	assert.ErrorIs(t, Params{K1: -1, B: 0.5}.Validate(), apperrors.ErrInvalidArgument)
	assert.ErrorIs(t, Params{K1: 1, B: 1.5}.Validate(), apperrors.ErrInvalidArgument)
	assert.ErrorIs(t, Params{K1: math.NaN(), B: 0.5}.Validate(), apperrors.ErrInvalidArgument)
}

// Package ranker scores candidate documents with Okapi BM25.
package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

type ScoredDoc struct {
	DocID uint64  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Params are the BM25 tuning constants. K1 controls term frequency
// saturation, B the strength of document length normalisation.
type Params struct {
	K1 float64 `json:"k1"`
	B  float64 `json:"b"`
}

func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

func (p Params) Validate() error {
	if p.K1 < 0 || math.IsNaN(p.K1) || math.IsInf(p.K1, 0) {
		return apperrors.InvalidArgument("k1 must be a finite non-negative number, got %v", p.K1)
	}
	if p.B < 0 || p.B > 1 || math.IsNaN(p.B) {
		return apperrors.InvalidArgument("b must be within [0, 1], got %v", p.B)
	}
	return nil
}

// CorpusStats are the global index statistics BM25 needs.
type CorpusStats struct {
	TotalDocs    int64
	AvgDocLength float64
}

// TermPostings carries one query term's posting list. DocFreq is the
// term's document frequency in the whole corpus; zero means len(Postings).
type TermPostings struct {
	Term     string
	DocFreq  int
	Postings index.PostingList
}

type Ranker struct {
	params Params
}

func New(params Params) *Ranker {
	return &Ranker{params: params}
}

func (r *Ranker) Params() Params {
	return r.params
}

// Rank scores every candidate against terms and returns at most limit
// results ordered by descending score, then ascending DocID. A limit of
// zero or less returns every candidate. Candidates and posting lists must
// be sorted by ascending DocID.
func (r *Ranker) Rank(
	terms []TermPostings,
	candidates []uint64,
	stats CorpusStats,
	docLength func(docID uint64) int,
	limit int,
) []ScoredDoc {
	if len(candidates) == 0 || len(terms) == 0 {
		return []ScoredDoc{}
	}
	idfs := make([]float64, len(terms))
	for i, t := range terms {
		df := t.DocFreq
		if df == 0 {
			df = len(t.Postings)
		}
		idfs[i] = r.IDF(stats.TotalDocs, int64(df))
	}

	capacity := len(candidates)
	if limit > 0 && limit < capacity {
		capacity = limit
	}
	top := newTopK(capacity)
	cursors := make([]int, len(terms))
	for _, docID := range candidates {
		docLen := float64(docLength(docID))
		var score float64
		for i, t := range terms {
			postings := t.Postings
			c := cursors[i]
			for c < len(postings) && postings[c].DocID < docID {
				c++
			}
			cursors[i] = c
			if c < len(postings) && postings[c].DocID == docID {
				score += idfs[i] * r.TermWeight(float64(postings[c].Frequency), docLen, stats.AvgDocLength)
			}
		}
		top.offer(ScoredDoc{DocID: docID, Score: score})
	}
	return top.sorted()
}

// IDF is ln((N - df + 0.5) / (df + 0.5) + 1).
func (r *Ranker) IDF(totalDocs, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

// TermWeight is the saturated, length-normalised term frequency component.
func (r *Ranker) TermWeight(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength == 0 || termFreq == 0 {
		return 0
	}
	k1, b := r.params.K1, r.params.B
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}

package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
)

var benchBodies = []string{
	"search engine with inverted indexing and query processing",
	"ranking documents by term frequency and document length",
	"the quick brown fox jumps over the lazy dog",
	"tokenizer splits text on punctuation and folds case",
}

func seededEngine(b *testing.B, n int) *Engine {
	b.Helper()
	ctx := context.Background()
	e, err := NewEngine(ctx, store.NewMemoryBackend(), Options{})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { e.Close() })
	for i := 0; i < n; i++ {
		body := benchBodies[i%len(benchBodies)]
		if _, err := e.AddDocument(ctx, fmt.Sprintf("doc %d", i), body); err != nil {
			b.Fatal(err)
		}
	}
	return e
}

func BenchmarkAddDocument(b *testing.B) {
	ctx := context.Background()
	e, err := NewEngine(ctx, store.NewMemoryBackend(), Options{})
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.AddDocument(ctx, "bench", benchBodies[i%len(benchBodies)]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearch(b *testing.B) {
	ctx := context.Background()
	for _, n := range []int{100, 1000, 10000} {
		e := seededEngine(b, n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := e.Search(ctx, "search ranking", 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSearchBoolean(b *testing.B) {
	ctx := context.Background()
	e := seededEngine(b, 1000)
	plan := e.Plan("search AND query NOT fox", true)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Execute(ctx, plan, 10); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSearchParallel measures read throughput while a writer keeps
// adding documents.
func BenchmarkSearchParallel(b *testing.B) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := seededEngine(b, 1000)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ctx.Err() == nil; i++ {
			if _, err := e.AddDocument(ctx, "writer", benchBodies[i%len(benchBodies)]); err != nil {
				return
			}
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := e.Search(ctx, "document length", 10); err != nil {
				b.Error(err)
				return
			}
		}
	})
	b.StopTimer()
	cancel()
	<-done
}

func BenchmarkPlan(b *testing.B) {
	e := seededEngine(b, 0)
	queries := []string{
		"search",
		"inverted index ranking",
		"search AND ranking NOT fox",
		"quick OR lazy OR brown OR dog",
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Plan(queries[i%len(queries)], true)
	}
}

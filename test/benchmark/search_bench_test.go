package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/index"
	"github.com/lanternsearch/lantern/internal/search"
	"github.com/lanternsearch/lantern/internal/settings"
	"github.com/lanternsearch/lantern/pkg/config"
	"github.com/lanternsearch/lantern/pkg/metrics"
)

var benchMetrics = metrics.New()

var titleWords = []string{
	"batman", "returns", "gotham", "midnight", "shadow", "garden",
	"winter", "voyage", "castle", "thunder", "harvest", "lantern",
	"paper", "copper", "silent", "harbor", "meadow", "ember",
}

func buildBenchIndex(b *testing.B, numDocs int) *index.Index {
	b.Helper()
	s := settings.Default()
	s.FilterableAttributes = []string{"genre", "year"}
	s.SortableAttributes = []string{"year"}

	idx := index.New("bench", document.NewMemStore(), s, 64, nil)
	ctx, cancel := context.WithCancel(context.Background())
	b.Cleanup(cancel)
	go idx.Run(ctx)

	rng := rand.New(rand.NewSource(7))
	genres := []string{"action", "drama", "comedy", "horror", "documentary"}
	batch := make([]document.Document, 0, 1000)
	for i := 0; i < numDocs; i++ {
		title := ""
		for w := 0; w < 3+rng.Intn(5); w++ {
			if w > 0 {
				title += " "
			}
			title += titleWords[rng.Intn(len(titleWords))]
		}
		d, err := document.New(map[string]any{
			"id":    i,
			"title": title,
			"genre": genres[rng.Intn(len(genres))],
			"year":  float64(1950 + rng.Intn(75)),
		}, "id")
		if err != nil {
			b.Fatalf("building document: %v", err)
		}
		batch = append(batch, d)
		if len(batch) == cap(batch) {
			if err := idx.AddDocuments(ctx, batch); err != nil {
				b.Fatalf("indexing: %v", err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := idx.AddDocuments(ctx, batch); err != nil {
			b.Fatalf("indexing: %v", err)
		}
	}
	return idx
}

func benchExecutor(b *testing.B) *search.Executor {
	b.Helper()
	cfg, err := config.Load("")
	if err != nil {
		b.Fatalf("loading config: %v", err)
	}
	return search.NewExecutor(cfg.Search, cfg.Index, slog.New(slog.DiscardHandler), benchMetrics)
}

func BenchmarkSearch(b *testing.B) {
	queries := []struct {
		name string
		q    *search.Query
	}{
		{"exact_word", &search.Query{Q: "batman"}},
		{"one_typo", &search.Query{Q: "batmen"}},
		{"two_words", &search.Query{Q: "batman returns"}},
		{"filtered", &search.Query{Q: "batman", Filter: "genre = action AND year >= 1990"}},
		{"sorted", &search.Query{Q: "batman", Sort: []string{"year:desc"}}},
		{"faceted", &search.Query{Q: "batman", Facets: []string{"genre", "year"}}},
		{"scored", &search.Query{Q: "batman returns", ShowRankingScoreDetails: true}},
	}

	for _, numDocs := range []int{1000, 10000} {
		idx := buildBenchIndex(b, numDocs)
		exec := benchExecutor(b)
		snap := idx.Snapshot()
		for _, q := range queries {
			b.Run(fmt.Sprintf("docs_%d/%s", numDocs, q.name), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := exec.Search(context.Background(), idx.Name, snap, q.q); err != nil {
						b.Fatalf("Search: %v", err)
					}
				}
			})
		}
	}
}

func BenchmarkSearchParallel(b *testing.B) {
	idx := buildBenchIndex(b, 10000)
	exec := benchExecutor(b)
	snap := idx.Snapshot()
	q := &search.Query{Q: "batman returns", Filter: "genre = action"}

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := exec.Search(context.Background(), idx.Name, snap, q); err != nil {
				b.Fatalf("Search: %v", err)
			}
		}
	})
}

func BenchmarkAddDocuments(b *testing.B) {
	for _, batchSize := range []int{100, 1000} {
		b.Run(fmt.Sprintf("batch_%d", batchSize), func(b *testing.B) {
			idx := index.New("bench", document.NewMemStore(), settings.Default(), 64, nil)
			ctx, cancel := context.WithCancel(context.Background())
			b.Cleanup(cancel)
			go idx.Run(ctx)

			rng := rand.New(rand.NewSource(7))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				batch := make([]document.Document, batchSize)
				for j := range batch {
					d, err := document.New(map[string]any{
						"id":    i*batchSize + j,
						"title": titleWords[rng.Intn(len(titleWords))] + " " + titleWords[rng.Intn(len(titleWords))],
					}, "id")
					if err != nil {
						b.Fatalf("building document: %v", err)
					}
					batch[j] = d
				}
				if err := idx.AddDocuments(ctx, batch); err != nil {
					b.Fatalf("indexing: %v", err)
				}
			}
		})
	}
}

package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/index"
	"github.com/lanternsearch/lantern/internal/settings"
	"github.com/lanternsearch/lantern/pkg/config"
	apperrors "github.com/lanternsearch/lantern/pkg/errors"
	"github.com/lanternsearch/lantern/pkg/metrics"
)

// one registration per test binary
var testMetrics = metrics.New()

func movieSettings() settings.Settings {
	s := settings.Default()
	s.FilterableAttributes = []string{"title", "genre", "year", "tags"}
	s.SortableAttributes = []string{"year"}
	return s
}

func newMovieIndex(t *testing.T, s settings.Settings, raws ...map[string]any) *index.Index {
	t.Helper()
	idx := index.New("movies", document.NewMemStore(), s, 16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go idx.Run(ctx)

	docs := make([]document.Document, 0, len(raws))
	for _, raw := range raws {
		d, err := document.New(raw, s.PrimaryKey)
		if err != nil {
			t.Fatalf("building document: %v", err)
		}
		docs = append(docs, d)
	}
	if err := idx.AddDocuments(context.Background(), docs); err != nil {
		t.Fatalf("adding documents: %v", err)
	}
	return idx
}

func movieIndex(t *testing.T, s settings.Settings) *index.Index {
	t.Helper()
	return newMovieIndex(t, s,
		map[string]any{"id": 1, "title": "Batman", "genre": "action", "year": 1989.0},
		map[string]any{"id": 2, "title": "Batman Returns", "genre": "action", "year": 1992.0},
		map[string]any{"id": 3, "title": "Catwoman", "genre": "thriller", "year": 2004.0},
	)
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	return NewExecutor(cfg.Search, cfg.Index, slog.New(slog.DiscardHandler), testMetrics)
}

func search(t *testing.T, idx *index.Index, q *Query) *Result {
	t.Helper()
	res, err := newTestExecutor(t).Search(context.Background(), idx.Name, idx.Snapshot(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	return res
}

func hitIDs(res *Result) []string {
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids
}

func wantHits(t *testing.T, res *Result, want ...string) {
	t.Helper()
	got := hitIDs(res)
	if len(got) != len(want) {
		t.Fatalf("hits = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hits = %v, want %v", got, want)
		}
	}
}

func TestSearchExactWordRanksWholeAttributeFirst(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	res := search(t, idx, &Query{Q: "batman"})
	wantHits(t, res, "1", "2")
	if res.Degraded {
		t.Error("unexpected degraded result")
	}
	if res.EstimatedTotalHits != 2 {
		t.Errorf("estimated total = %d, want 2", res.EstimatedTotalHits)
	}
}

func TestSearchToleratesOneTypo(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	res := search(t, idx, &Query{Q: "batmen"})
	wantHits(t, res, "1", "2")
}

func TestSearchTypoDisabledForWord(t *testing.T) {
	s := movieSettings()
	s.TypoTolerance.DisableOnWords = []string{"batmen"}
	idx := movieIndex(t, s)
	res := search(t, idx, &Query{Q: "batmen"})
	wantHits(t, res)
}

func TestSearchTypoDisabledForAttribute(t *testing.T) {
	s := movieSettings()
	s.TypoTolerance.DisableOnAttributes = []string{"title"}
	idx := movieIndex(t, s)

	res := search(t, idx, &Query{Q: "batmen"})
	wantHits(t, res)

	// Exact matches in the disabled attribute are unaffected.
	res = search(t, idx, &Query{Q: "batman"})
	wantHits(t, res, "1", "2")
}

func TestSearchTypoDisabledAttributeKeepsOtherAttributes(t *testing.T) {
	s := movieSettings()
	s.TypoTolerance.DisableOnAttributes = []string{"title"}
	idx := newMovieIndex(t, s,
		map[string]any{"id": 1, "title": "Batman", "genre": "action"},
		map[string]any{"id": 2, "title": "Gotham Nights", "tags": "batman"},
	)
	res := search(t, idx, &Query{Q: "batmen"})
	wantHits(t, res, "2")
}

func TestSearchOrderIndependentOfIngestionOrder(t *testing.T) {
	docs := []map[string]any{
		{"id": 1, "title": "Batman", "genre": "action", "year": 1989.0},
		{"id": 2, "title": "Batman Returns", "genre": "action", "year": 1992.0},
		{"id": 3, "title": "Catwoman", "genre": "thriller", "year": 2004.0},
	}
	forward := newMovieIndex(t, movieSettings(), docs[0], docs[1], docs[2])
	reversed := newMovieIndex(t, movieSettings(), docs[2], docs[1], docs[0])

	cases := []struct {
		name string
		q    Query
		want []string
	}{
		{"exactness", Query{Q: "batman"}, []string{"1", "2"}},
		{"words", Query{Q: "batman returns"}, []string{"2", "1"}},
		{"sorted", Query{Sort: []string{"year:desc"}}, []string{"3", "2", "1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := tc.q
			wantHits(t, search(t, forward, &q), tc.want...)
			q = tc.q
			wantHits(t, search(t, reversed, &q), tc.want...)
		})
	}
}

func TestSearchFilterNarrowsWithoutReordering(t *testing.T) {
	idx := newMovieIndex(t, movieSettings(),
		map[string]any{"id": 1, "title": "Batman", "genre": "action"},
		map[string]any{"id": 2, "title": "Batman Returns", "genre": "action"},
		map[string]any{"id": 3, "title": "Batman Forever", "genre": "thriller"},
	)
	full := search(t, idx, &Query{Q: "batman"})
	wantHits(t, full, "1", "2", "3")

	action := search(t, idx, &Query{Q: "batman", Filter: `genre = action`})
	wantHits(t, action, "1", "2")
	thriller := search(t, idx, &Query{Q: "batman", Filter: `genre = thriller`})
	wantHits(t, thriller, "3")

	// survivors keep their relative order from the unfiltered ranking
	assertSubsequence(t, hitIDs(action), hitIDs(full))
	assertSubsequence(t, hitIDs(thriller), hitIDs(full))
}

func assertSubsequence(t *testing.T, sub, full []string) {
	t.Helper()
	j := 0
	for _, id := range sub {
		for j < len(full) && full[j] != id {
			j++
		}
		if j == len(full) {
			t.Fatalf("%v is not a subsequence of %v", sub, full)
		}
		j++
	}
}

func TestSearchFilterOnly(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	res := search(t, idx, &Query{Filter: `title = "Catwoman"`})
	wantHits(t, res, "3")
}

func TestSearchEmptyQueryMatchesAllDocuments(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	res := search(t, idx, &Query{})
	wantHits(t, res, "1", "2", "3")
}

func TestSearchStopWordsDropped(t *testing.T) {
	s := movieSettings()
	s.StopWords = []string{"the"}
	idx := movieIndex(t, s)
	res := search(t, idx, &Query{Q: "the batman"})
	wantHits(t, res, "1", "2")
}

func TestSearchPrefixOnLastWord(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	res := search(t, idx, &Query{Q: "catw"})
	wantHits(t, res, "3")
}

func TestSearchMatchingStrategies(t *testing.T) {
	idx := movieIndex(t, movieSettings())

	// last: "returns" is dropped once requiring both terms runs dry, and
	// the fuller match still ranks first
	res := search(t, idx, &Query{Q: "batman returns"})
	wantHits(t, res, "2", "1")

	res = search(t, idx, &Query{Q: "batman returns", MatchingStrategy: MatchingAll})
	wantHits(t, res, "2")

	// frequency: "batman" is the commoner term, so it is dropped first
	res = search(t, idx, &Query{Q: "batman catwoman", MatchingStrategy: MatchingFrequency})
	wantHits(t, res, "3")
}

func TestSearchSort(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	res := search(t, idx, &Query{Sort: []string{"year:desc"}})
	wantHits(t, res, "3", "2", "1")

	res = search(t, idx, &Query{Sort: []string{"year:asc"}})
	wantHits(t, res, "1", "2", "3")
}

func TestSearchOffsetLimitPagination(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	res := search(t, idx, &Query{Offset: 1, Limit: 1})
	wantHits(t, res, "2")
	if res.EstimatedTotalHits != 3 || res.Offset != 1 || res.Limit != 1 {
		t.Errorf("pagination echo = total %d offset %d limit %d", res.EstimatedTotalHits, res.Offset, res.Limit)
	}
	if res.TotalPages != 0 || res.Page != 0 {
		t.Error("page fields set on offset pagination")
	}
}

func TestSearchPagePagination(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	res := search(t, idx, &Query{Page: 2, HitsPerPage: 2})
	wantHits(t, res, "3")
	if res.TotalHits != 3 || res.TotalPages != 2 || res.Page != 2 || res.HitsPerPage != 2 {
		t.Errorf("page pagination = total %d pages %d page %d per %d",
			res.TotalHits, res.TotalPages, res.Page, res.HitsPerPage)
	}
	if res.EstimatedTotalHits != 0 {
		t.Error("estimate set on page pagination")
	}
}

func TestSearchFacets(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	res := search(t, idx, &Query{Facets: []string{"genre", "year"}})

	genres := res.FacetDistribution["genre"]
	if len(genres) != 2 || genres[0].Value != "action" || genres[0].Count != 2 ||
		genres[1].Value != "thriller" || genres[1].Count != 1 {
		t.Errorf("genre distribution = %+v", genres)
	}
	st, ok := res.FacetStats["year"]
	if !ok || st.Min != 1989 || st.Max != 2004 {
		t.Errorf("year stats = %+v", st)
	}
}

func TestSearchFacetOrderByCount(t *testing.T) {
	s := movieSettings()
	s.SortFacetValuesBy = map[string]settings.FacetOrder{"genre": settings.FacetOrderCount}
	idx := movieIndex(t, s)
	res := search(t, idx, &Query{Facets: []string{"genre"}})
	genres := res.FacetDistribution["genre"]
	if len(genres) != 2 || genres[0].Value != "action" {
		t.Errorf("count-ordered distribution = %+v", genres)
	}
}

func TestSearchDistinctAttribute(t *testing.T) {
	s := movieSettings()
	s.DistinctAttribute = "genre"
	idx := movieIndex(t, s)
	res := search(t, idx, &Query{})
	wantHits(t, res, "1", "3")
}

func TestSearchRankingScores(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	res := search(t, idx, &Query{Q: "batman", ShowRankingScoreDetails: true})
	if len(res.Hits) != 2 {
		t.Fatalf("hits = %v", hitIDs(res))
	}
	first, second := res.Hits[0], res.Hits[1]
	if first.RankingScore == nil || second.RankingScore == nil {
		t.Fatal("ranking scores not populated")
	}
	if *first.RankingScore != 1.0 {
		t.Errorf("best hit score = %v, want 1.0", *first.RankingScore)
	}
	if *second.RankingScore >= *first.RankingScore {
		t.Errorf("scores not descending: %v then %v", *first.RankingScore, *second.RankingScore)
	}
	if len(first.RankingScoreDetails) == 0 {
		t.Error("score details not populated")
	}
}

func TestSearchRankingScoreThreshold(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	res := search(t, idx, &Query{Q: "batman", RankingScoreThreshold: 1.0})
	wantHits(t, res, "1")
	if res.EstimatedTotalHits != 1 {
		t.Errorf("estimated total = %d, want 1 after threshold", res.EstimatedTotalHits)
	}
}

func TestSearchValidationErrors(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	exec := newTestExecutor(t)
	snap := idx.Snapshot()

	cases := []struct {
		name     string
		q        *Query
		sentinel error
	}{
		{"unknown strategy", &Query{MatchingStrategy: "some"}, apperrors.ErrInvalidQuery},
		{"negative offset", &Query{Offset: -1}, apperrors.ErrInvalidQuery},
		{"mixed pagination", &Query{Page: 1, Limit: 5}, apperrors.ErrInvalidQuery},
		{"threshold out of range", &Query{RankingScoreThreshold: 1.5}, apperrors.ErrInvalidQuery},
		{"bad sort syntax", &Query{Sort: []string{"year"}}, apperrors.ErrInvalidSort},
		{"bad sort direction", &Query{Sort: []string{"year:sideways"}}, apperrors.ErrInvalidSort},
		{"unsortable attribute", &Query{Sort: []string{"title:asc"}}, apperrors.ErrInvalidSort},
		{"filter syntax", &Query{Filter: "genre ="}, apperrors.ErrInvalidFilter},
		{"unfilterable attribute", &Query{Filter: "secret = 1"}, apperrors.ErrInvalidFilter},
		{"unfilterable facet", &Query{Facets: []string{"secret"}}, apperrors.ErrInvalidFilter},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := exec.Search(context.Background(), idx.Name, snap, c.q)
			if !errors.Is(err, c.sentinel) {
				t.Errorf("err = %v, want %v", err, c.sentinel)
			}
			if apperrors.HTTPStatusCode(err) != 400 {
				t.Errorf("status = %d, want 400", apperrors.HTTPStatusCode(err))
			}
		})
	}
}

func TestSearchDegradedOnExpiredContext(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestExecutor(t).Search(ctx, idx.Name, idx.Snapshot(), &Query{Q: "batman"})
	if err != nil {
		t.Fatalf("Search under expired context: %v", err)
	}
	if !res.Degraded {
		t.Error("expired context should flag the result degraded")
	}
	if res.EstimatedTotalHits != 2 {
		t.Errorf("degraded result lost candidates: total = %d", res.EstimatedTotalHits)
	}
}

func TestSearchSynonyms(t *testing.T) {
	s := movieSettings()
	s.Synonyms = map[string][]string{"feline": {"catwoman"}}
	idx := movieIndex(t, s)
	res := search(t, idx, &Query{Q: "feline"})
	wantHits(t, res, "3")
}

func TestFacetSearch(t *testing.T) {
	idx := movieIndex(t, movieSettings())
	snap := idx.Snapshot()

	values, err := FacetSearch(snap, "genre", "act", "", 100)
	if err != nil {
		t.Fatalf("FacetSearch: %v", err)
	}
	if len(values) != 1 || values[0].Value != "action" || values[0].Count != 2 {
		t.Errorf("facet values = %+v", values)
	}

	values, err = FacetSearch(snap, "genre", "", "year > 1990", 100)
	if err != nil {
		t.Fatalf("FacetSearch with filter: %v", err)
	}
	if len(values) != 2 || values[0].Count != 1 || values[1].Count != 1 {
		t.Errorf("filtered facet values = %+v", values)
	}

	if _, err := FacetSearch(snap, "secret", "", "", 100); !errors.Is(err, apperrors.ErrInvalidFilter) {
		t.Errorf("unfilterable facet err = %v", err)
	}
}

func TestQueryWindow(t *testing.T) {
	cases := []struct {
		q    Query
		from int
		to   int
	}{
		{Query{}, 0, 20},
		{Query{Limit: 5}, 0, 5},
		{Query{Offset: 10, Limit: 5}, 10, 15},
		{Query{Page: 1, HitsPerPage: 10}, 0, 10},
		{Query{Page: 3, HitsPerPage: 10}, 20, 30},
		{Query{Page: 2}, 20, 40},
	}
	for _, c := range cases {
		from, to := c.q.window(20)
		if from != c.from || to != c.to {
			t.Errorf("window(%+v) = [%d,%d), want [%d,%d)", c.q, from, to, c.from, c.to)
		}
	}
}

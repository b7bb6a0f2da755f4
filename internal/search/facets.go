package search

import (
	"sort"
	"strings"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/index"
	"github.com/lanternsearch/lantern/internal/settings"
	apperrors "github.com/lanternsearch/lantern/pkg/errors"
)

// facetTally accumulates per-attribute value counts and numeric ranges
// over the filtered candidate set.
type facetTally struct {
	counts map[string]map[string]int
	stats  map[string]*FacetStats
}

func newFacetTally(attrs []string) *facetTally {
	t := &facetTally{
		counts: make(map[string]map[string]int, len(attrs)),
		stats:  make(map[string]*FacetStats),
	}
	for _, a := range attrs {
		t.counts[a] = make(map[string]int)
	}
	return t
}

func (t *facetTally) add(fields map[string]document.Value) {
	for attr, counts := range t.counts {
		v, ok := fields[attr]
		if !ok || v.IsNull() {
			continue
		}
		for _, el := range facetElems(v) {
			counts[el.FacetString()]++
			if n, isNum := el.AsNumber(); isNum && el.Kind() == document.KindNumber {
				st := t.stats[attr]
				if st == nil {
					t.stats[attr] = &FacetStats{Min: n, Max: n}
					continue
				}
				if n < st.Min {
					st.Min = n
				}
				if n > st.Max {
					st.Max = n
				}
			}
		}
	}
}

func facetElems(v document.Value) []document.Value {
	if v.Kind() == document.KindArray {
		return v.Elems()
	}
	return []document.Value{v}
}

// distribution renders the tally into ordered value lists, ascending
// lexicographic by default or by descending count when configured for the
// facet.
func (t *facetTally) distribution(s settings.Settings) (map[string][]FacetValue, map[string]FacetStats) {
	dist := make(map[string][]FacetValue, len(t.counts))
	for attr, counts := range t.counts {
		values := make([]FacetValue, 0, len(counts))
		for v, n := range counts {
			values = append(values, FacetValue{Value: v, Count: n})
		}
		if facetOrderFor(s, attr) == settings.FacetOrderCount {
			sort.Slice(values, func(i, j int) bool {
				if values[i].Count != values[j].Count {
					return values[i].Count > values[j].Count
				}
				return values[i].Value < values[j].Value
			})
		} else {
			sort.Slice(values, func(i, j int) bool { return values[i].Value < values[j].Value })
		}
		dist[attr] = values
	}
	stats := make(map[string]FacetStats, len(t.stats))
	for attr, st := range t.stats {
		stats[attr] = *st
	}
	return dist, stats
}

func facetOrderFor(s settings.Settings, attr string) settings.FacetOrder {
	if o, ok := s.SortFacetValuesBy[attr]; ok {
		return o
	}
	if o, ok := s.SortFacetValuesBy["*"]; ok {
		return o
	}
	return settings.FacetOrderAlpha
}

// FacetSearch returns the facet values of one filterable attribute whose
// normalized form starts with the facet query, with their counts over the
// optionally filtered document set.
func FacetSearch(snap *index.Snapshot, facetName, facetQuery, filterExpr string, maxDepth int) ([]FacetValue, error) {
	if !snap.Settings.IsFilterable(facetName) {
		return nil, apperrors.InvalidFilter("attribute %q is not filterable", facetName)
	}
	node, err := parseAndValidateFilter(filterExpr, maxDepth, snap.Settings)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	it := snap.Live().Iterator()
	for it.HasNext() {
		doc := index.DocID(it.Next())
		fields, ok := snap.FieldsOf(doc)
		if !ok {
			continue
		}
		if !evaluateFilter(node, fields) {
			continue
		}
		v, ok := fields[facetName]
		if !ok || v.IsNull() {
			continue
		}
		for _, el := range facetElems(v) {
			counts[el.FacetString()]++
		}
	}

	want := strings.ToLower(facetQuery)
	values := make([]FacetValue, 0, len(counts))
	for v, n := range counts {
		if want == "" || strings.HasPrefix(strings.ToLower(v), want) {
			values = append(values, FacetValue{Value: v, Count: n})
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i].Value < values[j].Value })
	return values, nil
}

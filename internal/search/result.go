package search

import (
	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/search/ranking"
)

// Hit is one ranked document in a result page.
type Hit struct {
	ID                  string                    `json:"id"`
	Document            map[string]document.Value `json:"document"`
	RankingScore        *float64                  `json:"_rankingScore,omitempty"`
	RankingScoreDetails []ranking.RuleScore       `json:"_rankingScoreDetails,omitempty"`
}

// FacetStats carries the numeric range observed for one facet attribute
// across the filtered candidate set.
type FacetStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FacetValue is one value/count pair of a facet distribution, ordered per
// the index's facet ordering setting.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Result is a ranked result set. Exactly one of EstimatedTotalHits or
// TotalHits is meaningful, depending on the pagination style: offset/limit
// reports an estimate, page/hitsPerPage reports exact totals.
type Result struct {
	Hits []Hit `json:"hits"`

	EstimatedTotalHits int `json:"estimatedTotalHits,omitempty"`
	TotalHits          int `json:"totalHits,omitempty"`
	TotalPages         int `json:"totalPages,omitempty"`
	Page               int `json:"page,omitempty"`
	HitsPerPage        int `json:"hitsPerPage,omitempty"`
	Offset             int `json:"offset"`
	Limit              int `json:"limit"`

	FacetDistribution map[string][]FacetValue `json:"facetDistribution,omitempty"`
	FacetStats        map[string]FacetStats   `json:"facetStats,omitempty"`

	// Degraded marks a response truncated by the search cutoff: the hits
	// are the best-effort ranking accumulated before the deadline, not
	// the fully refined order.
	Degraded bool `json:"degraded,omitempty"`

	ProcessingTimeMs int64 `json:"processingTimeMs"`
}

// Package search wires the query path together: term expansion, candidate
// building, filtering, ranking, faceting and pagination over one immutable
// index snapshot.
package search

import (
	"strings"

	"github.com/lanternsearch/lantern/internal/search/ranking"
	apperrors "github.com/lanternsearch/lantern/pkg/errors"
)

// MatchingStrategy controls how the candidate builder relaxes the query
// when requiring every term yields too few results.
type MatchingStrategy string

const (
	// MatchingAll requires every term and never relaxes.
	MatchingAll MatchingStrategy = "all"
	// MatchingLast drops terms from the end of the query, one at a time.
	MatchingLast MatchingStrategy = "last"
	// MatchingFrequency drops the most common term first.
	MatchingFrequency MatchingStrategy = "frequency"
)

// Query is an immutable per-request value object. The zero value of every
// optional field means "not requested".
type Query struct {
	Q      string   `json:"q"`
	Filter string   `json:"filter,omitempty"`
	Sort   []string `json:"sort,omitempty"`
	Facets []string `json:"facets,omitempty"`

	Offset      int `json:"offset,omitempty"`
	Limit       int `json:"limit,omitempty"`
	Page        int `json:"page,omitempty"`
	HitsPerPage int `json:"hitsPerPage,omitempty"`

	MatchingStrategy MatchingStrategy `json:"matchingStrategy,omitempty"`

	ShowRankingScore        bool    `json:"showRankingScore,omitempty"`
	ShowRankingScoreDetails bool    `json:"showRankingScoreDetails,omitempty"`
	RankingScoreThreshold   float64 `json:"rankingScoreThreshold,omitempty"`
}

// UsesPagePagination reports whether the query asked for page-based
// pagination, which switches the total from an estimate to an exact count.
func (q *Query) UsesPagePagination() bool {
	return q.Page > 0 || q.HitsPerPage > 0
}

// window resolves the query's pagination to a half-open [from, to) window
// over the ranked list. defaultLimit applies when the query sets neither
// limit nor hitsPerPage.
func (q *Query) window(defaultLimit int) (from, to int) {
	if q.UsesPagePagination() {
		per := q.HitsPerPage
		if per <= 0 {
			per = defaultLimit
		}
		page := q.Page
		if page <= 0 {
			page = 1
		}
		from = (page - 1) * per
		return from, from + per
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return q.Offset, q.Offset + limit
}

// strategy returns the effective matching strategy, defaulting to last.
func (q *Query) strategy() MatchingStrategy {
	if q.MatchingStrategy == "" {
		return MatchingLast
	}
	return q.MatchingStrategy
}

func (q *Query) validate() error {
	switch q.MatchingStrategy {
	case "", MatchingAll, MatchingLast, MatchingFrequency:
	default:
		return apperrors.Newf(apperrors.ErrInvalidQuery, 400, "unknown matching strategy %q", q.MatchingStrategy)
	}
	if q.Offset < 0 || q.Limit < 0 || q.Page < 0 || q.HitsPerPage < 0 {
		return apperrors.New(apperrors.ErrInvalidQuery, 400, "pagination values must not be negative")
	}
	if q.UsesPagePagination() && (q.Offset > 0 || q.Limit > 0) {
		return apperrors.New(apperrors.ErrInvalidQuery, 400, "page/hitsPerPage cannot be combined with offset/limit")
	}
	if q.RankingScoreThreshold < 0 || q.RankingScoreThreshold > 1 {
		return apperrors.New(apperrors.ErrInvalidQuery, 400, "rankingScoreThreshold must be between 0 and 1")
	}
	return nil
}

// parseSorts turns "attr:asc" / "attr:desc" entries into sort specs.
func parseSorts(raw []string) ([]ranking.SortSpec, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	specs := make([]ranking.SortSpec, 0, len(raw))
	for _, s := range raw {
		attr, dir, found := strings.Cut(s, ":")
		if !found || attr == "" {
			return nil, apperrors.InvalidSort("sort %q must be of the form attribute:asc or attribute:desc", s)
		}
		switch dir {
		case "asc":
			specs = append(specs, ranking.SortSpec{Attr: attr})
		case "desc":
			specs = append(specs, ranking.SortSpec{Attr: attr, Desc: true})
		default:
			return nil, apperrors.InvalidSort("sort direction %q must be asc or desc", dir)
		}
	}
	return specs, nil
}

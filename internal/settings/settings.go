// Package settings holds the per-index configuration snapshot consumed by
// the indexing pipeline and the query executor: attribute roles, ranking
// rules, stop words, synonyms, and typo tolerance.
package settings

import (
	"fmt"
	"strings"
)

// RuleKind tags the built-in ranking criteria plus custom attribute sorts.
type RuleKind int

const (
	RuleWords RuleKind = iota
	RuleTypo
	RuleProximity
	RuleAttribute
	RuleSort
	RuleExactness
	RuleCustomAsc
	RuleCustomDesc
)

func (k RuleKind) String() string {
	switch k {
	case RuleWords:
		return "words"
	case RuleTypo:
		return "typo"
	case RuleProximity:
		return "proximity"
	case RuleAttribute:
		return "attribute"
	case RuleSort:
		return "sort"
	case RuleExactness:
		return "exactness"
	case RuleCustomAsc:
		return "asc"
	case RuleCustomDesc:
		return "desc"
	default:
		return "unknown"
	}
}

// RankingRule is one element of the configured rule chain. Attribute is set
// only for custom asc/desc rules.
type RankingRule struct {
	Kind      RuleKind
	Attribute string
}

func (r RankingRule) String() string {
	switch r.Kind {
	case RuleCustomAsc:
		return r.Attribute + ":asc"
	case RuleCustomDesc:
		return r.Attribute + ":desc"
	default:
		return r.Kind.String()
	}
}

// ParseRankingRule parses a rule identifier: a built-in name or
// "attribute:asc" / "attribute:desc".
func ParseRankingRule(s string) (RankingRule, error) {
	switch s {
	case "words":
		return RankingRule{Kind: RuleWords}, nil
	case "typo":
		return RankingRule{Kind: RuleTypo}, nil
	case "proximity":
		return RankingRule{Kind: RuleProximity}, nil
	case "attribute":
		return RankingRule{Kind: RuleAttribute}, nil
	case "sort":
		return RankingRule{Kind: RuleSort}, nil
	case "exactness":
		return RankingRule{Kind: RuleExactness}, nil
	}
	if attr, ok := strings.CutSuffix(s, ":asc"); ok && attr != "" {
		return RankingRule{Kind: RuleCustomAsc, Attribute: attr}, nil
	}
	if attr, ok := strings.CutSuffix(s, ":desc"); ok && attr != "" {
		return RankingRule{Kind: RuleCustomDesc, Attribute: attr}, nil
	}
	return RankingRule{}, fmt.Errorf("unknown ranking rule %q", s)
}

// DefaultRankingRules returns the default chain: words, typo, proximity,
// attribute, sort, exactness.
func DefaultRankingRules() []RankingRule {
	return []RankingRule{
		{Kind: RuleWords},
		{Kind: RuleTypo},
		{Kind: RuleProximity},
		{Kind: RuleAttribute},
		{Kind: RuleSort},
		{Kind: RuleExactness},
	}
}

// TypoTolerance configures fuzzy matching budgets.
type TypoTolerance struct {
	Enabled bool
	// MinWordSizeForOneTypo is the query word length at which one typo is
	// tolerated. Below it only exact matches qualify.
	MinWordSizeForOneTypo int
	// MinWordSizeForTwoTypos is the length at which two typos are
	// tolerated.
	MinWordSizeForTwoTypos int
	// DisableOnWords lists query words matched exactly only.
	DisableOnWords []string
	// DisableOnAttributes lists attributes whose content never fuzzy
	// matches.
	DisableOnAttributes []string
	// DisableOnNumbers forces exact matching for purely numeric tokens.
	DisableOnNumbers bool
}

// DefaultTypoTolerance mirrors the documented defaults (5 and 9).
func DefaultTypoTolerance() TypoTolerance {
	return TypoTolerance{
		Enabled:                true,
		MinWordSizeForOneTypo:  5,
		MinWordSizeForTwoTypos: 9,
	}
}

// FacetOrder selects how facet values are ordered in distributions.
type FacetOrder string

const (
	FacetOrderAlpha FacetOrder = "alpha"
	FacetOrderCount FacetOrder = "count"
)

// Settings is the immutable per-index configuration snapshot. A copy is
// taken per query; mutation goes through the index's settings task, which
// rebuilds the index when a change affects tokenization or filtering.
type Settings struct {
	PrimaryKey string
	// SearchableAttributes is ordered: earlier attributes outrank later
	// ones in the attribute ranking rule. Empty means every attribute is
	// searchable with equal rank.
	SearchableAttributes []string
	FilterableAttributes []string
	SortableAttributes   []string
	RankingRules         []RankingRule
	StopWords            []string
	// Synonyms maps a normalized word to its expansions. Expansion is
	// one-way and applied at query time.
	Synonyms          map[string][]string
	TypoTolerance     TypoTolerance
	DistinctAttribute string
	// SortFacetValuesBy overrides facet value ordering per facet name;
	// "*" sets the default for all facets.
	SortFacetValuesBy map[string]FacetOrder
	PrefixSearch      bool
	MaxTotalHits      int
}

// Default returns settings matching the documented defaults.
func Default() Settings {
	return Settings{
		PrimaryKey:    "id",
		RankingRules:  DefaultRankingRules(),
		TypoTolerance: DefaultTypoTolerance(),
		PrefixSearch:  true,
		MaxTotalHits:  1000,
	}
}

// IsFilterable reports whether attr may appear in filter expressions.
// Dot-nested children of a filterable parent are filterable too.
func (s Settings) IsFilterable(attr string) bool {
	return attrListed(s.FilterableAttributes, attr)
}

// IsSortable reports whether attr may appear in sort specifications.
func (s Settings) IsSortable(attr string) bool {
	return attrListed(s.SortableAttributes, attr)
}

func attrListed(list []string, attr string) bool {
	for _, a := range list {
		if a == attr || a == "*" {
			return true
		}
		if strings.HasPrefix(attr, a+".") {
			return true
		}
	}
	return false
}

// IsStopWord reports whether the normalized word is configured as a stop
// word.
func (s Settings) IsStopWord(word string) bool {
	for _, w := range s.StopWords {
		if w == word {
			return true
		}
	}
	return false
}

// SearchableRank returns the attribute's position in the searchable order.
// With no explicit list every attribute ranks 0. The boolean is false when
// the attribute is not searchable at all.
func (s Settings) SearchableRank(attr string) (int, bool) {
	if len(s.SearchableAttributes) == 0 {
		return 0, true
	}
	for i, a := range s.SearchableAttributes {
		if a == attr || a == "*" {
			return i, true
		}
		if strings.HasPrefix(attr, a+".") {
			return i, true
		}
	}
	return 0, false
}

// TypoDisabledForWord reports whether fuzzy matching is suppressed for the
// given normalized query word.
func (s Settings) TypoDisabledForWord(word string) bool {
	for _, w := range s.TypoTolerance.DisableOnWords {
		if strings.EqualFold(w, word) {
			return true
		}
	}
	return false
}

// TypoDisabledForAttribute reports whether attr's content is exact-match
// only.
func (s Settings) TypoDisabledForAttribute(attr string) bool {
	return attrListed(s.TypoTolerance.DisableOnAttributes, attr)
}

// RequiresRebuild reports whether switching from s to next invalidates the
// posting lists, forcing a full rebuild before the change is visible.
// Changes to ranking rules, distinct attribute, facet ordering, or
// pagination take effect without one.
func (s Settings) RequiresRebuild(next Settings) bool {
	return !equalStrings(s.SearchableAttributes, next.SearchableAttributes) ||
		!equalStrings(s.FilterableAttributes, next.FilterableAttributes) ||
		!equalStrings(s.SortableAttributes, next.SortableAttributes) ||
		!equalStrings(s.StopWords, next.StopWords) ||
		!equalSynonyms(s.Synonyms, next.Synonyms) ||
		s.PrimaryKey != next.PrimaryKey
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalSynonyms(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !equalStrings(va, vb) {
			return false
		}
	}
	return true
}

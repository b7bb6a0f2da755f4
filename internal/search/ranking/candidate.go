// Package ranking implements the bucket-sort ranking pipeline: each rule
// partitions the current bucket into ordered sub-buckets by its own
// criterion and the next rule recurses into each sub-bucket independently,
// with the internal document id as the final tie-break.
package ranking

import (
	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/index"
)

// TermMatch records how one query term matched inside a document, merged
// across all dictionary words the term expanded to.
type TermMatch struct {
	// Index is the term's position in the query, after stop-word removal.
	Index int
	// Typos is the cheapest typo count among the words matching this term.
	Typos int
	// Exact is true when the term matched its own dictionary word, not a
	// typo variant or synonym.
	Exact bool
	// Positions are the term's occurrences in the document, across all
	// matching words.
	Positions []index.Position
}

// Candidate is a document flowing through the ranking pipeline together
// with its per-term match evidence. Rule keys are computed lazily and
// cached, since a rule only inspects documents still tied after the rules
// before it.
type Candidate struct {
	ID    index.DocID
	Terms []TermMatch

	// Fields is the document's flattened attribute map, needed only by
	// sort and custom rules. The executor fills it on demand.
	Fields map[string]document.Value

	// Score and Details are populated by the engine when the query asks
	// for ranking scores.
	Score   float64
	Details []RuleScore

	typoCost int
	typoOK   bool
	proxCost int
	proxOK   bool
	attrKey  attrKey
	attrOK   bool
	exactKey exactKey
	exactOK  bool
}

// RuleScore is one rule's normalized contribution to a candidate's ranking
// score, for score-details output.
type RuleScore struct {
	Rule  string  `json:"rule"`
	Score float64 `json:"score"`
}

type attrKey struct {
	missing int // query terms not covered by the chosen attribute
	rank    int // searchable rank of the chosen attribute
	start   int // earliest matched ordinal within it
}

type exactKey struct {
	class      int // 0 whole-attribute, 1 starts-at-0, 2 neither
	exactCount int
}

package ranking

import (
	"github.com/lanternsearch/lantern/internal/index"
	"github.com/lanternsearch/lantern/internal/settings"
	apperrors "github.com/lanternsearch/lantern/pkg/errors"
)

// maxPairDistance caps the proximity cost between two matched terms. Two
// terms in different attributes, or further apart than one hard separator,
// all cost the cap.
const maxPairDistance = 8

// Rule orders candidates by one criterion. Compare returns a negative
// value when a ranks before b, zero when the rule cannot discriminate.
type Rule interface {
	Name() string
	Compare(a, b *Candidate) int
}

// SortSpec is one user-requested sort key, parsed from "attr:asc" or
// "attr:desc".
type SortSpec struct {
	Attr string
	Desc bool
}

// Context carries the snapshot-derived lookups rules need.
type Context struct {
	// AttrRank maps an interned attribute id to its position in the
	// configured searchable-attribute order.
	AttrRank func(attr uint16) int
	// AttrTokens returns the token count of one attribute of a document,
	// for whole-attribute exactness.
	AttrTokens func(doc index.DocID, attr uint16) int
}

// BuildRules assembles the rule chain for one query from the configured
// ranking rules and the query's sort parameter. Words always runs first
// whatever the configured order says, and the sort rule is dropped
// entirely when the query carries no sort.
func BuildRules(configured []settings.RankingRule, sorts []SortSpec, rctx *Context) ([]Rule, error) {
	out := []Rule{wordsRule{}}
	for _, r := range configured {
		switch r.Kind {
		case settings.RuleWords:
			// already first
		case settings.RuleTypo:
			out = append(out, typoRule{})
		case settings.RuleProximity:
			out = append(out, proximityRule{})
		case settings.RuleAttribute:
			out = append(out, attributeRule{rctx})
		case settings.RuleSort:
			if len(sorts) > 0 {
				out = append(out, sortRule{specs: sorts})
			}
		case settings.RuleExactness:
			out = append(out, exactnessRule{rctx})
		case settings.RuleCustomAsc:
			out = append(out, customRule{attr: r.Attribute})
		case settings.RuleCustomDesc:
			out = append(out, customRule{attr: r.Attribute, desc: true})
		default:
			return nil, apperrors.Newf(apperrors.ErrInvalidQuery, 400, "unknown ranking rule %q", r.String())
		}
	}
	return out, nil
}

// wordsRule ranks by descending count of distinct matched query terms.
type wordsRule struct{}

func (wordsRule) Name() string { return "words" }

func (wordsRule) Compare(a, b *Candidate) int {
	return len(b.Terms) - len(a.Terms)
}

// typoRule ranks by ascending total typo cost, summing each term's
// cheapest match.
type typoRule struct{}

func (typoRule) Name() string { return "typo" }

func (typoRule) Compare(a, b *Candidate) int {
	return a.typos() - b.typos()
}

func (c *Candidate) typos() int {
	if !c.typoOK {
		total := 0
		for _, t := range c.Terms {
			total += t.Typos
		}
		c.typoCost = total
		c.typoOK = true
	}
	return c.typoCost
}

// proximityRule ranks by ascending summed distance between consecutive
// matched terms. Distance uses the tokenizer's weighted positions, so a
// soft separator costs 1 and a hard one 8; terms out of query order pay
// one extra, and pairs in different attributes pay the cap.
type proximityRule struct{}

func (proximityRule) Name() string { return "proximity" }

func (proximityRule) Compare(a, b *Candidate) int {
	return a.proximity() - b.proximity()
}

func (c *Candidate) proximity() int {
	if !c.proxOK {
		total := 0
		for i := 1; i < len(c.Terms); i++ {
			total += pairDistance(c.Terms[i-1].Positions, c.Terms[i].Positions)
		}
		c.proxCost = total
		c.proxOK = true
	}
	return c.proxCost
}

func pairDistance(prev, next []index.Position) int {
	best := maxPairDistance
	for _, p := range prev {
		for _, q := range next {
			if p.Attr != q.Attr {
				continue
			}
			var d int
			if q.Weighted > p.Weighted {
				d = int(q.Weighted - p.Weighted)
			} else {
				d = int(p.Weighted-q.Weighted) + 1
			}
			if d < best {
				best = d
			}
		}
	}
	return best
}

// attributeRule prefers documents whose match lives in an earlier-ranked
// searchable attribute, choosing per document the attribute covering the
// most query terms. Ties break on the earliest matched ordinal inside the
// attribute.
type attributeRule struct {
	rctx *Context
}

func (attributeRule) Name() string { return "attribute" }

func (r attributeRule) Compare(a, b *Candidate) int {
	ka, kb := a.attribute(r.rctx), b.attribute(r.rctx)
	if ka.missing != kb.missing {
		return ka.missing - kb.missing
	}
	if ka.rank != kb.rank {
		return ka.rank - kb.rank
	}
	return ka.start - kb.start
}

func (c *Candidate) attribute(rctx *Context) attrKey {
	if c.attrOK {
		return c.attrKey
	}
	type attrStat struct {
		covered int
		start   int
	}
	stats := make(map[uint16]*attrStat)
	for _, t := range c.Terms {
		seen := make(map[uint16]bool)
		for _, p := range t.Positions {
			st := stats[p.Attr]
			if st == nil {
				st = &attrStat{start: int(p.Ordinal)}
				stats[p.Attr] = st
			}
			if !seen[p.Attr] {
				st.covered++
				seen[p.Attr] = true
			}
			if int(p.Ordinal) < st.start {
				st.start = int(p.Ordinal)
			}
		}
	}
	best := attrKey{missing: len(c.Terms), rank: int(^uint(0) >> 1)}
	for attr, st := range stats {
		k := attrKey{missing: len(c.Terms) - st.covered, rank: rctx.AttrRank(attr), start: st.start}
		if k.missing < best.missing ||
			(k.missing == best.missing && k.rank < best.rank) ||
			(k.missing == best.missing && k.rank == best.rank && k.start < best.start) {
			best = k
		}
	}
	c.attrKey = best
	c.attrOK = true
	return best
}

// sortRule applies the query's sort keys in order, each breaking the ties
// of the previous. Documents missing a sort attribute rank last whichever
// the direction.
type sortRule struct {
	specs []SortSpec
}

func (sortRule) Name() string { return "sort" }

func (r sortRule) Compare(a, b *Candidate) int {
	for _, s := range r.specs {
		if c := compareByAttr(a, b, s.Attr, s.Desc); c != 0 {
			return c
		}
	}
	return 0
}

func compareByAttr(a, b *Candidate, attr string, desc bool) int {
	va, okA := a.Fields[attr]
	vb, okB := b.Fields[attr]
	okA = okA && !va.IsNull()
	okB = okB && !vb.IsNull()
	switch {
	case okA && !okB:
		return -1
	case !okA && okB:
		return 1
	case !okA && !okB:
		return 0
	}
	c, comparable := va.Compare(vb)
	if !comparable {
		return 0
	}
	if desc {
		return -c
	}
	return c
}

// exactnessRule ranks whole-attribute verbatim matches above matches that
// merely start the attribute, above everything else ordered by descending
// count of non-fuzzy term matches.
type exactnessRule struct {
	rctx *Context
}

func (exactnessRule) Name() string { return "exactness" }

func (r exactnessRule) Compare(a, b *Candidate) int {
	ka, kb := a.exactness(r.rctx), b.exactness(r.rctx)
	if ka.class != kb.class {
		return ka.class - kb.class
	}
	return kb.exactCount - ka.exactCount
}

func (c *Candidate) exactness(rctx *Context) exactKey {
	if c.exactOK {
		return c.exactKey
	}
	key := exactKey{class: 2}
	for _, t := range c.Terms {
		if t.Exact {
			key.exactCount++
		}
	}
	if key.exactCount == len(c.Terms) && len(c.Terms) > 0 {
		if attr, ok := c.contiguousFromStart(); ok {
			if rctx.AttrTokens(c.ID, attr) == len(c.Terms) {
				key.class = 0
			} else {
				key.class = 1
			}
		}
	}
	c.exactKey = key
	c.exactOK = true
	return key
}

// contiguousFromStart finds an attribute where the query terms appear
// verbatim, in order, at ordinals 0..n-1.
func (c *Candidate) contiguousFromStart() (uint16, bool) {
	if len(c.Terms) == 0 {
		return 0, false
	}
outer:
	for _, p0 := range c.Terms[0].Positions {
		if p0.Ordinal != 0 {
			continue
		}
		for i := 1; i < len(c.Terms); i++ {
			if !hasOrdinal(c.Terms[i].Positions, p0.Attr, uint16(i)) {
				continue outer
			}
		}
		return p0.Attr, true
	}
	return 0, false
}

func hasOrdinal(ps []index.Position, attr, ordinal uint16) bool {
	for _, p := range ps {
		if p.Attr == attr && p.Ordinal == ordinal {
			return true
		}
	}
	return false
}

// customRule orders by a document attribute baked into the ranking rules,
// as opposed to sortRule's per-query keys. Missing values rank last in
// either direction.
type customRule struct {
	attr string
	desc bool
}

func (r customRule) Name() string {
	if r.desc {
		return r.attr + ":desc"
	}
	return r.attr + ":asc"
}

func (r customRule) Compare(a, b *Candidate) int {
	return compareByAttr(a, b, r.attr, r.desc)
}

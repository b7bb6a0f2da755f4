package ranking

import (
	"context"
	"sort"
)

// Engine runs the bucket sort. Rank is pure over its inputs, so one Engine
// is safe for concurrent queries.
type Engine struct {
	rules []Rule
}

func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Rank orders candidates in place by applying each rule in turn to the
// sub-buckets the previous rules left tied, finishing with the internal
// document id. The context's deadline is checked at bucket boundaries:
// once it passes, remaining buckets keep whatever order earlier rules
// established and degraded is returned true.
//
// When withScores is set, every candidate gets a Score in (0,1]. Each rule
// splits its bucket's score interval among the sub-buckets by position, so
// a document ranked before another always scores at least as high. The
// per-rule Details record each rule's relative sub-score.
func (e *Engine) Rank(ctx context.Context, cands []*Candidate, withScores bool) (degraded bool) {
	if len(cands) == 0 {
		return false
	}
	r := &run{ctx: ctx, rules: e.rules, withScores: withScores}
	r.rank(cands, 0, 0.0, 1.0)
	return r.degraded
}

type run struct {
	ctx        context.Context
	rules      []Rule
	withScores bool
	degraded   bool
}

// rank sorts one bucket in place, assigning scores from the interval
// (lo, hi] when requested.
func (r *run) rank(bucket []*Candidate, rule int, lo, hi float64) {
	n := len(bucket)
	if n == 0 {
		return
	}
	if rule >= len(r.rules) {
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].ID < bucket[j].ID })
		r.assign(bucket, lo, hi)
		return
	}
	if r.ctx.Err() != nil {
		// cutoff: stop refining, keep the order established so far
		r.degraded = true
		r.assign(bucket, lo, hi)
		return
	}

	cmp := r.rules[rule]
	sort.SliceStable(bucket, func(i, j int) bool { return cmp.Compare(bucket[i], bucket[j]) < 0 })

	// walk runs of equal keys, recursing with the next rule; the run
	// starting at position start owns the score interval matching its
	// slice of the bucket
	for start := 0; start < n; {
		end := start + 1
		for end < n && cmp.Compare(bucket[start], bucket[end]) == 0 {
			end++
		}
		sub := bucket[start:end]
		subLo := lo + (hi-lo)*float64(n-end)/float64(n)
		subHi := lo + (hi-lo)*float64(n-start)/float64(n)
		if r.withScores {
			ruleScore := float64(n-start) / float64(n)
			for _, c := range sub {
				c.Details = append(c.Details, RuleScore{Rule: cmp.Name(), Score: ruleScore})
			}
		}
		r.rank(sub, rule+1, subLo, subHi)
		start = end
	}
}

// assign spreads the interval's scores over an already-ordered bucket,
// best first.
func (r *run) assign(bucket []*Candidate, lo, hi float64) {
	if !r.withScores {
		return
	}
	n := len(bucket)
	for i, c := range bucket {
		c.Score = lo + (hi-lo)*float64(n-i)/float64(n)
	}
}

package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/errgroup"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/index"
	"github.com/lanternsearch/lantern/internal/search/filter"
	"github.com/lanternsearch/lantern/internal/search/ranking"
	"github.com/lanternsearch/lantern/internal/settings"
	"github.com/lanternsearch/lantern/internal/tokenizer"
	"github.com/lanternsearch/lantern/internal/typo"
	"github.com/lanternsearch/lantern/pkg/config"
	apperrors "github.com/lanternsearch/lantern/pkg/errors"
	"github.com/lanternsearch/lantern/pkg/metrics"
)

// Executor runs queries against immutable index snapshots. It holds no
// per-query state, so one Executor serves all indexes and all concurrent
// queries.
type Executor struct {
	cfg     config.SearchConfig
	idxCfg  config.IndexConfig
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewExecutor(cfg config.SearchConfig, idxCfg config.IndexConfig, log *slog.Logger, m *metrics.Metrics) *Executor {
	return &Executor{cfg: cfg, idxCfg: idxCfg, log: log, metrics: m}
}

// Search executes one query against the snapshot. Malformed queries fail
// synchronously before any index access. Once execution starts the cutoff
// timer governs it: on expiry the pipeline stops taking new candidates,
// flushes the ranking it has, and returns a result flagged Degraded
// rather than an error. Best-effort matching applies under the last and
// frequency strategies: hits may match only a subset of the query terms.
func (e *Executor) Search(ctx context.Context, indexName string, snap *index.Snapshot, q *Query) (*Result, error) {
	start := time.Now()

	if err := q.validate(); err != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	sorts, err := e.parseAndValidateSorts(q, snap.Settings)
	if err != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	filterNode, err := parseAndValidateFilter(q.Filter, e.cfg.MaxFilterDepth, snap.Settings)
	if err != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	for _, f := range q.Facets {
		if !snap.Settings.IsFilterable(f) {
			e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
			return nil, apperrors.InvalidFilter("facet attribute %q is not filterable", f)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Cutoff)
	defer cancel()

	maxHits := snap.Settings.MaxTotalHits
	if maxHits <= 0 || maxHits > e.cfg.MaxTotalHits {
		maxHits = e.cfg.MaxTotalHits
	}
	from, to := q.window(e.cfg.DefaultLimit)
	target := to
	if target > maxHits {
		target = maxHits
	}

	terms := e.expandTerms(snap, q)
	var docs *roaring.Bitmap
	var required []termExpansion
	if len(terms) == 0 {
		// empty or all-stop-word query matches every live document
		docs = snap.Live().Clone()
	} else {
		docs, required = buildCandidates(snap, terms, q.strategy(), target)
	}
	e.metrics.SearchCandidates.Observe(float64(docs.GetCardinality()))

	withScores := q.ShowRankingScore || q.ShowRankingScoreDetails || q.RankingScoreThreshold > 0

	tally := newFacetTally(q.Facets)
	cands, truncated := e.collect(ctx, snap, docs, terms, required, filterNode, sorts, tally)

	rules, err := ranking.BuildRules(snap.Settings.RankingRules, sorts, &ranking.Context{
		AttrRank:   attrRankFunc(snap),
		AttrTokens: snap.AttrTokenCount,
	})
	if err != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	degraded := ranking.NewEngine(rules).Rank(ctx, cands, withScores) || truncated

	if q.RankingScoreThreshold > 0 {
		kept := cands[:0]
		for _, c := range cands {
			if c.Score >= q.RankingScoreThreshold {
				kept = append(kept, c)
			}
		}
		cands = kept
	}
	if snap.Settings.DistinctAttribute != "" {
		cands = applyDistinct(cands, snap.Settings.DistinctAttribute)
	}
	if len(cands) > maxHits {
		cands = cands[:maxHits]
	}

	res := &Result{ProcessingTimeMs: time.Since(start).Milliseconds(), Degraded: degraded}
	e.paginate(res, q, cands, from, to)
	if len(q.Facets) > 0 {
		res.FacetDistribution, res.FacetStats = tally.distribution(snap.Settings)
	}
	e.fillHits(res, snap, cands, from, to, q)

	outcome := "complete"
	if degraded {
		outcome = "degraded"
		e.metrics.SearchDegradedTotal.Inc()
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	e.metrics.SearchLatency.WithLabelValues(indexName).Observe(time.Since(start).Seconds())
	e.log.Debug("query executed",
		slog.String("index", indexName),
		slog.Uint64("generation", snap.Generation),
		slog.Int("candidates", len(cands)),
		slog.Int("hits", len(res.Hits)),
		slog.Bool("degraded", degraded),
		slog.Int64("took_ms", res.ProcessingTimeMs))
	return res, nil
}

func (e *Executor) parseAndValidateSorts(q *Query, s settings.Settings) ([]ranking.SortSpec, error) {
	sorts, err := parseSorts(q.Sort)
	if err != nil {
		return nil, err
	}
	for _, sp := range sorts {
		if !s.IsSortable(sp.Attr) {
			return nil, apperrors.InvalidSort("attribute %q is not sortable", sp.Attr)
		}
	}
	return sorts, nil
}

func parseAndValidateFilter(expr string, maxDepth int, s settings.Settings) (filter.Node, error) {
	node, err := filter.Parse(expr, maxDepth)
	if err != nil {
		return nil, err
	}
	for _, attr := range filter.Attributes(node) {
		if !s.IsFilterable(attr) {
			return nil, apperrors.InvalidFilter("attribute %q is not filterable", attr)
		}
	}
	return node, nil
}

func evaluateFilter(node filter.Node, fields map[string]document.Value) bool {
	return filter.Evaluate(node, fields)
}

// expandTerms tokenizes the query and expands each surviving term into its
// acceptable dictionary words: the fuzzy matches within its typo budget,
// configured synonyms, and word-concatenation candidates for split
// compounds. The last term expands in prefix mode when the index allows
// prefix search.
func (e *Executor) expandTerms(snap *index.Snapshot, q *Query) []termExpansion {
	toks := tokenizer.Tokenize(q.Q)
	s := snap.Settings

	kept := make([]tokenizer.Token, 0, len(toks))
	for _, t := range toks {
		if s.IsStopWord(t.Text) {
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return nil
	}

	// each term walks the whole dictionary; expand terms in parallel
	dict := snap.Dictionary()
	expanded := make([][]typo.Match, len(kept))
	var g errgroup.Group
	for i, t := range kept {
		g.Go(func() error {
			budget := typo.Budget(t.Text, s.TypoTolerance)
			if s.TypoDisabledForWord(t.Text) {
				budget = 0
			}
			prefix := s.PrefixSearch && i == len(kept)-1
			expanded[i] = typo.MatchWord(dict, t.Text, budget, prefix)
			return nil
		})
	}
	_ = g.Wait() // the walkers never fail

	terms := make([]termExpansion, 0, len(kept))
	posToTerm := make(map[int]int, len(kept))
	for i, t := range kept {
		matches := expanded[i]
		for _, m := range matches {
			if m.Typos > 0 {
				e.metrics.TypoExpansionsTotal.Inc()
			}
		}
		for _, syn := range s.Synonyms[t.Text] {
			for _, st := range tokenizer.Tokenize(syn) {
				if snap.HasWord(st.Text) {
					matches = append(matches, typo.Match{Word: st.Text})
				}
			}
		}
		posToTerm[t.Position] = i
		terms = append(terms, newTermExpansion(snap, i, t.Text, matches))
	}

	maxParts := e.idxCfg.MaxConcatParts
	for _, c := range tokenizer.ConcatCandidates(toks, maxParts) {
		if !snap.HasWord(c.Text) {
			continue
		}
		ti, ok := posToTerm[c.From]
		if !ok {
			continue
		}
		terms[ti].Matches = append(terms[ti].Matches, typo.Match{Word: c.Text})
		if pl := snap.LookupExact(c.Text); pl != nil {
			terms[ti].docs.Or(pl.Docs)
			terms[ti].frequency += pl.Docs.GetCardinality()
		}
	}
	return terms
}

// collect walks the candidate bitmap, applies the filter, gathers per-term
// match evidence and facet tallies, and materialises ranking candidates.
// Documents present in postings but missing from the snapshot's field data
// are skipped and logged, never fatal. When the cutoff fires mid-walk the
// candidates gathered so far are returned with truncated set.
func (e *Executor) collect(ctx context.Context, snap *index.Snapshot, docs *roaring.Bitmap, terms, required []termExpansion, node filter.Node, sorts []ranking.SortSpec, tally *facetTally) (cands []*ranking.Candidate, truncated bool) {
	needFields := len(sorts) > 0 || snap.Settings.DistinctAttribute != "" || customRuleConfigured(snap.Settings)

	requiredIdx := make(map[int]bool, len(required))
	for _, t := range required {
		requiredIdx[t.Index] = true
	}

	cands = make([]*ranking.Candidate, 0, docs.GetCardinality())
	checked := 0
	it := docs.Iterator()
	for it.HasNext() {
		doc := index.DocID(it.Next())
		checked++
		if checked%1024 == 0 && ctx.Err() != nil {
			truncated = true
			break
		}

		fields, ok := snap.FieldsOf(doc)
		if !ok {
			e.metrics.InconsistenciesTotal.Inc()
			e.log.Warn("document in postings but missing from snapshot fields, skipping",
				slog.Uint64("doc", uint64(doc)),
				slog.Uint64("generation", snap.Generation))
			continue
		}
		if !evaluateFilter(node, fields) {
			continue
		}
		tms := termMatches(snap, doc, terms)
		if !coversRequired(tms, requiredIdx) {
			continue
		}
		tally.add(fields)

		c := &ranking.Candidate{ID: doc, Terms: tms}
		if needFields {
			c.Fields = fields
		}
		cands = append(cands, c)
	}
	return cands, truncated
}

// termMatches merges each term's match evidence for one document: the
// positions across every matching word, the cheapest typo count, and
// whether the term matched verbatim. Terms with no occurrence in the
// document are left out, which is what the words rule counts. Fuzzy
// evidence never comes from attributes listed in
// typoTolerance.disableOnAttributes.
func termMatches(snap *index.Snapshot, doc index.DocID, terms []termExpansion) []ranking.TermMatch {
	out := make([]ranking.TermMatch, 0, len(terms))
	for _, t := range terms {
		tm := ranking.TermMatch{Index: t.Index, Typos: -1}
		for _, m := range t.Matches {
			pl := snap.LookupExact(m.Word)
			if pl == nil {
				continue
			}
			ps := pl.Positions[doc]
			if m.Typos > 0 {
				ps = typoAllowedPositions(snap, ps)
			}
			if len(ps) == 0 {
				continue
			}
			tm.Positions = append(tm.Positions, ps...)
			if tm.Typos < 0 || m.Typos < tm.Typos {
				tm.Typos = m.Typos
			}
			if m.Typos == 0 && m.Word == t.Text {
				tm.Exact = true
			}
		}
		if len(tm.Positions) > 0 {
			out = append(out, tm)
		}
	}
	return out
}

// coversRequired reports whether every term the matching strategy still
// requires kept at least one surviving occurrence. The intersection
// guarantees this when no attribute restricts typo tolerance; with
// disableOnAttributes a document can lose its only evidence for a term.
func coversRequired(tms []ranking.TermMatch, required map[int]bool) bool {
	if len(required) == 0 {
		return true
	}
	covered := 0
	for _, tm := range tms {
		if required[tm.Index] {
			covered++
		}
	}
	return covered == len(required)
}

// typoAllowedPositions drops occurrences inside attributes whose typo
// tolerance is disabled. Posting slices are shared snapshot data, so a
// filtered copy is returned rather than editing in place.
func typoAllowedPositions(snap *index.Snapshot, ps []index.Position) []index.Position {
	if len(snap.Settings.TypoTolerance.DisableOnAttributes) == 0 {
		return ps
	}
	out := make([]index.Position, 0, len(ps))
	for _, p := range ps {
		if snap.Settings.TypoDisabledForAttribute(snap.AttrName(p.Attr)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func applyDistinct(cands []*ranking.Candidate, attr string) []*ranking.Candidate {
	seen := make(map[string]bool)
	out := cands[:0]
	for _, c := range cands {
		v, ok := c.Fields[attr]
		if !ok || v.IsNull() {
			out = append(out, c)
			continue
		}
		key := v.FacetString()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func customRuleConfigured(s settings.Settings) bool {
	for _, r := range s.RankingRules {
		if r.Kind == settings.RuleCustomAsc || r.Kind == settings.RuleCustomDesc {
			return true
		}
	}
	return false
}

func attrRankFunc(snap *index.Snapshot) func(uint16) int {
	return func(id uint16) int {
		rank, ok := snap.Settings.SearchableRank(snap.AttrName(id))
		if !ok {
			return int(^uint(0) >> 1)
		}
		return rank
	}
}

func (e *Executor) paginate(res *Result, q *Query, cands []*ranking.Candidate, from, to int) {
	total := len(cands)
	if q.UsesPagePagination() {
		per := to - from
		res.TotalHits = total
		res.HitsPerPage = per
		res.Page = from/per + 1
		res.TotalPages = (total + per - 1) / per
		return
	}
	res.EstimatedTotalHits = total
	res.Offset = from
	res.Limit = to - from
}

func (e *Executor) fillHits(res *Result, snap *index.Snapshot, cands []*ranking.Candidate, from, to int, q *Query) {
	if from > len(cands) {
		from = len(cands)
	}
	if to > len(cands) {
		to = len(cands)
	}
	res.Hits = make([]Hit, 0, to-from)
	for _, c := range cands[from:to] {
		ext, ok := snap.ExternalID(c.ID)
		if !ok {
			e.metrics.InconsistenciesTotal.Inc()
			e.log.Warn("ranked document has no external id, skipping",
				slog.Uint64("doc", uint64(c.ID)),
				slog.Uint64("generation", snap.Generation))
			continue
		}
		fields, _ := snap.FieldsOf(c.ID)
		h := Hit{ID: ext, Document: fields}
		if q.ShowRankingScore || q.ShowRankingScoreDetails {
			score := c.Score
			h.RankingScore = &score
		}
		if q.ShowRankingScoreDetails {
			h.RankingScoreDetails = c.Details
		}
		res.Hits = append(res.Hits, h)
	}
}

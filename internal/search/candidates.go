package search

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/lanternsearch/lantern/internal/index"
	"github.com/lanternsearch/lantern/internal/typo"
)

// termExpansion is one query term together with every dictionary word it
// may match and the union of those words' document sets.
type termExpansion struct {
	// Index is the term's position in the query after stop-word removal.
	Index int
	// Text is the normalized term.
	Text string
	// Matches are the dictionary words accepted for this term, fuzzy and
	// synonym expansions included.
	Matches []typo.Match
	// docs unions the posting documents of all matched words.
	docs *roaring.Bitmap
	// frequency is the total posting cardinality across matched words,
	// driving the frequency matching strategy.
	frequency uint64
}

func newTermExpansion(snap *index.Snapshot, termIndex int, text string, matches []typo.Match) termExpansion {
	t := termExpansion{Index: termIndex, Text: text, Matches: matches, docs: roaring.New()}
	for _, m := range matches {
		if pl := snap.LookupExact(m.Word); pl != nil {
			t.docs.Or(pl.Docs)
			t.frequency += pl.Docs.GetCardinality()
		}
	}
	return t
}

// buildCandidates runs the term-relaxation state machine. It starts by
// requiring every term, and while the intersection holds fewer than target
// documents it drops one term per step according to the matching strategy,
// stopping when a single term remains. Strategy all never relaxes. The
// returned terms are the ones still required; dropped terms do not
// constrain the candidate set but still contribute match evidence for
// ranking.
func buildCandidates(snap *index.Snapshot, terms []termExpansion, strategy MatchingStrategy, target int) (*roaring.Bitmap, []termExpansion) {
	if len(terms) == 0 {
		return roaring.New(), nil
	}
	kept := terms
	for {
		docs := intersect(snap, kept)
		if strategy == MatchingAll {
			return docs, kept
		}
		if int(docs.GetCardinality()) >= target || len(kept) <= 1 {
			return docs, kept
		}
		kept = dropOne(kept, strategy)
	}
}

// intersect ANDs the remaining terms' document sets, constrained to the
// snapshot's live documents.
func intersect(snap *index.Snapshot, terms []termExpansion) *roaring.Bitmap {
	docs := terms[0].docs.Clone()
	for _, t := range terms[1:] {
		docs.And(t.docs)
	}
	docs.And(snap.Live())
	return docs
}

func dropOne(terms []termExpansion, strategy MatchingStrategy) []termExpansion {
	if strategy == MatchingFrequency {
		// the most common term is the least discriminating one
		drop := 0
		for i, t := range terms {
			if t.frequency > terms[drop].frequency {
				drop = i
			}
		}
		out := make([]termExpansion, 0, len(terms)-1)
		out = append(out, terms[:drop]...)
		out = append(out, terms[drop+1:]...)
		return out
	}
	// last: drop the rightmost term
	return terms[:len(terms)-1]
}

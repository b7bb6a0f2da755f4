// Package typo implements bounded fuzzy matching of query words against the
// index dictionary: a Levenshtein automaton with per-word-length edit
// budgets, prefix-aware acceptance, and the first-character double-typo
// rule.
package typo

// automaton is a bounded-edit-distance acceptor for one query word. Its
// state is a dynamic-programming row over the query; stepping a candidate
// rune produces the next row. A row whose minimum exceeds the budget is
// dead: no extension of the candidate prefix can ever match, which is what
// lets the dictionary walk prune whole prefix ranges instead of computing
// pairwise distances.
type automaton struct {
	query  []rune
	budget int
}

func newAutomaton(word string, budget int) *automaton {
	return &automaton{query: []rune(word), budget: budget}
}

// start returns the initial row: the cost of deleting i query runes.
func (a *automaton) start() []int {
	row := make([]int, len(a.query)+1)
	for i := range row {
		row[i] = i
	}
	return row
}

// step advances the row by one candidate rune.
func (a *automaton) step(row []int, r rune) []int {
	next := make([]int, len(row))
	next[0] = row[0] + 1
	for i := 1; i < len(row); i++ {
		cost := 1
		if a.query[i-1] == r {
			cost = 0
		}
		next[i] = minInt(
			row[i]+1,      // insertion into the query
			next[i-1]+1,   // deletion from the query
			row[i-1]+cost, // substitution or match
		)
	}
	return next
}

// viable reports whether any extension of the current candidate prefix can
// still match within budget.
func (a *automaton) viable(row []int) bool {
	for _, d := range row {
		if d <= a.budget {
			return true
		}
	}
	return false
}

// accepts returns the edit distance when the full query is matched by the
// candidate prefix consumed so far, within budget.
func (a *automaton) accepts(row []int) (int, bool) {
	d := row[len(row)-1]
	if d <= a.budget {
		return d, true
	}
	return 0, false
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

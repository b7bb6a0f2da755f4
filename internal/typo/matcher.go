package typo

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lanternsearch/lantern/internal/settings"
	"github.com/lanternsearch/lantern/internal/tokenizer"
)

// Match is one dictionary word accepted as a fuzzy match for a query word,
// tagged with the typo count the ranking pipeline charges for it.
type Match struct {
	Word string
	// Typos is the incurred typo count: edit distance, plus one when the
	// first character differs (a first-character typo counts double).
	Typos int
	// Prefix marks matches admitted through prefix search: the query
	// word matched a prefix of Word rather than the whole word.
	Prefix bool
}

// Budget returns the edit-distance budget for a query word under the given
// typo-tolerance configuration: zero below MinWordSizeForOneTypo, one below
// MinWordSizeForTwoTypos, two at or above it. Word length is measured in
// runes.
func Budget(word string, tt settings.TypoTolerance) int {
	if !tt.Enabled {
		return 0
	}
	if tt.DisableOnNumbers && tokenizer.IsNumeric(word) {
		return 0
	}
	switch length := utf8.RuneCountInString(word); {
	case length < tt.MinWordSizeForOneTypo:
		return 0
	case length < tt.MinWordSizeForTwoTypos:
		return 1
	default:
		return 2
	}
}

// MatchWord returns the dictionary words within the edit budget of the
// query word, walking the sorted dictionary with a shared-prefix state
// stack so each dictionary byte range is visited once. When prefix is
// true, the query word may also match a strict prefix of a dictionary word
// (the last-word-as-prefix behaviour of incremental search).
//
// No match is not an error: the caller decides whether an empty result
// eliminates the candidate set or triggers term dropping.
func MatchWord(dictionary []string, word string, budget int, prefix bool) []Match {
	if len(dictionary) == 0 || word == "" {
		return nil
	}
	a := newAutomaton(word, budget)
	queryFirst, _ := utf8.DecodeRuneInString(word)

	// rows[i] is the automaton state after consuming consumed[:i]. The
	// stack survives from one dictionary word to the next for the length
	// of their common prefix.
	rows := [][]int{a.start()}
	var consumed []rune

	var out []Match
	for i := 0; i < len(dictionary); i++ {
		cand := dictionary[i]
		runes := []rune(cand)
		keep := commonPrefix(consumed, runes)
		rows = rows[:keep+1]
		consumed = consumed[:keep]

		accepted := -1
		acceptDepth := 0
		// Check acceptance already reached within the retained prefix.
		if prefix {
			for i, row := range rows {
				if d, ok := a.accepts(row); ok {
					accepted = d
					acceptDepth = i
					break
				}
			}
		}
		dead := false
		for len(consumed) < len(runes) {
			next := a.step(rows[len(rows)-1], runes[len(consumed)])
			if !a.viable(next) {
				dead = true
				break
			}
			rows = append(rows, next)
			consumed = append(consumed, runes[len(consumed)])
			if prefix && accepted < 0 {
				if d, ok := a.accepts(next); ok {
					accepted = d
					acceptDepth = len(consumed)
				}
			}
		}
		if dead && accepted < 0 {
			// Every later word sharing this stem truncates back to the
			// same rows and dies on the same rune. The dictionary is
			// sorted, so those words are contiguous; jump past them.
			stem := string(consumed) + string(runes[len(consumed)])
			rest := dictionary[i+1:]
			i += sort.Search(len(rest), func(k int) bool {
				return !strings.HasPrefix(rest[k], stem)
			})
			continue
		}

		whole := len(consumed) == len(runes)
		var typos int
		var isPrefix bool
		switch {
		case whole:
			d, ok := a.accepts(rows[len(rows)-1])
			if !ok {
				if accepted < 0 {
					continue
				}
				typos, isPrefix = accepted, true
			} else {
				typos = d
			}
		case accepted >= 0:
			typos, isPrefix = accepted, true
		default:
			continue
		}
		// A prefix acceptance covering zero candidate runes would match
		// every word; require at least one consumed rune.
		if isPrefix && acceptDepth == 0 {
			continue
		}

		if runes[0] != queryFirst {
			typos++
			if typos > budget {
				continue
			}
		}
		out = append(out, Match{Word: cand, Typos: typos, Prefix: isPrefix})
	}
	return out
}

func commonPrefix(a, b []rune) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

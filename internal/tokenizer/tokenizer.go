// Package tokenizer segments raw text into normalized word tokens with byte
// spans and separator-distance metadata. Segmentation follows UAX#29 word
// boundaries; normalization lowercases and strips non-spacing marks.
//
// The same Normalize transform runs at indexing time and at query time.
// Matching silently fails if the two sides ever diverge, so every caller
// goes through this package rather than normalizing ad hoc.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Separator weights: adjacent words across a soft separator (space, hyphen)
// are distance 1 apart, across a hard separator (sentence punctuation) 8.
const (
	SoftSeparatorWeight = 1
	HardSeparatorWeight = 8
)

// Token is a single normalized word with its span in the original text.
type Token struct {
	// Text is the normalized form used for index and dictionary lookups.
	Text string
	// StartByte and EndByte delimit the original slice in the input.
	StartByte int
	EndByte   int
	// Position is the ordinal index of the token among word tokens.
	Position int
	// WeightedPosition accumulates separator weights from the start of
	// the field; the proximity distance between two tokens is the
	// difference of their weighted positions.
	WeightedPosition int
	// HardBoundary reports whether a hard separator precedes this token.
	HardBoundary bool
}

// stripMarks removes non-spacing marks after NFKD decomposition, then
// recomposes. This folds "éléphant" and "elephant" onto the same bytes.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases s and strips diacritics. Malformed byte sequences
// never abort normalization; on transform failure the input is folded with
// lowercase only, so a damaged field degrades instead of failing the
// document.
func Normalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Tokenize splits text into normalized word tokens. It never fails: text
// that produces no word segments yields an empty slice.
func Tokenize(text string) []Token {
	segs := words.FromString(text)

	tokens := make([]Token, 0, len(text)/6)
	cursor := 0
	pos := 0
	weighted := 0
	pendingWeight := 0
	pendingHard := false
	first := true

	for segs.Next() {
		seg := segs.Value()
		start := cursor
		cursor += len(seg)

		if !isWordSegment(seg) {
			w, hard := separatorWeight(seg)
			if w > pendingWeight {
				pendingWeight = w
				pendingHard = hard
			}
			continue
		}

		normalized := Normalize(seg)
		if normalized == "" {
			continue
		}
		if !first {
			if pendingWeight == 0 {
				// Adjacent word segments with no separator between
				// them (e.g. script transitions) count as soft.
				pendingWeight = SoftSeparatorWeight
			}
			weighted += pendingWeight
		}
		tokens = append(tokens, Token{
			Text:             normalized,
			StartByte:        start,
			EndByte:          cursor,
			Position:         pos,
			WeightedPosition: weighted,
			HardBoundary:     pendingHard,
		})
		pos++
		first = false
		pendingWeight = 0
		pendingHard = false
	}
	return tokens
}

// isWordSegment reports whether a UAX#29 segment carries word content
// rather than being a separator run.
func isWordSegment(seg string) bool {
	for _, r := range seg {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// separatorWeight classifies a separator run. Sentence-level punctuation is
// hard; whitespace, hyphens, and everything else is soft.
func separatorWeight(seg string) (int, bool) {
	for _, r := range seg {
		switch r {
		case '.', ';', ',', '!', '?', ':', '(', ')', '[', ']', '{', '}', '|', '\n', '\r':
			return HardSeparatorWeight, true
		}
	}
	return SoftSeparatorWeight, false
}

// Concat is a word-adjacency concatenation candidate: the normalized
// concatenation of tokens [From, To] with no separator.
type Concat struct {
	Text string
	From int
	To   int
}

// ConcatCandidates generates concatenation candidates for runs of up to
// maxParts adjacent tokens separated only by soft boundaries. "new york"
// yields "newyork"; a hard separator breaks the run.
func ConcatCandidates(tokens []Token, maxParts int) []Concat {
	if maxParts < 2 {
		return nil
	}
	var out []Concat
	for i := 0; i < len(tokens); i++ {
		var b strings.Builder
		b.WriteString(tokens[i].Text)
		for j := i + 1; j < len(tokens) && j-i < maxParts; j++ {
			if tokens[j].HardBoundary {
				break
			}
			b.WriteString(tokens[j].Text)
			out = append(out, Concat{Text: b.String(), From: i, To: j})
		}
	}
	return out
}

// IsNumeric reports whether a normalized token is purely numeric. Typo
// tolerance can be disabled for such tokens.
func IsNumeric(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return false
		}
	}
	return true
}

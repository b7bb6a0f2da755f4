package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/lanternsearch/lantern/internal/tokenizer"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `A full-text engine normalizes incoming text into searchable words:
        case folding, diacritic stripping and separator-aware splitting. Each word
        carries its ordinal and a weighted position, so ranking can tell words in
        the same phrase apart from words separated by a full stop. Numbers and
        compound identifiers survive tokenization unchanged.`,
	"long": strings.Repeat(`Search relevance rests on the evidence gathered at indexing
        time. The tokenizer records, for every word occurrence, which attribute it
        lives in, its position among the attribute's words, and a separator-weighted
        offset that makes a comma cheaper to cross than a full stop. Typo-tolerant
        matching then expands query words against the dictionary within a budget
        derived from word length, and the bucket-sort ranker orders candidates rule
        by rule until a single winner remains. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := tokenizer.Tokenize(text)
				_ = tokens
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tokens := tokenizer.Tokenize(text)
			_ = tokens
		}
	})
}

func BenchmarkNormalize(b *testing.B) {
	words := []string{
		"Batman", "Crème", "Brûlée", "ÉLÉPHANT",
		"naïve", "smörgåsbord", "façade", "x86-64",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			_ = tokenizer.Normalize(w)
		}
	}
}

func BenchmarkConcatCandidates(b *testing.B) {
	toks := tokenizer.Tokenize("new york city subway map of lower manhattan island")
	for _, maxParts := range []int{2, 3, 4} {
		b.Run(fmt.Sprintf("parts_%d", maxParts), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = tokenizer.ConcatCandidates(toks, maxParts)
			}
		})
	}
}

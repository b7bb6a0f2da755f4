package tokenizer

import (
	"testing"
)

func TestNormalizeStripsDiacriticsAndCase(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Batman", "batman"},
		{"éléphant", "elephant"},
		{"CAFÉ", "cafe"},
		{"straße", "straße"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	words := []string{"Batman", "éléphant", "CAFÉ", "straße", "Ångström", "naïve"}
	for _, w := range words {
		once := Normalize(w)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize(Normalize(%q)) = %q, want %q", w, twice, once)
		}
	}
}

func TestTokenizeNormalizedTextIsStable(t *testing.T) {
	// indexing and query time must agree: tokenizing already-normalized
	// token text reproduces the same words
	input := "The Dark Knight: Élan của Gotham"
	first := Tokenize(input)
	for _, tok := range first {
		again := Tokenize(tok.Text)
		if len(again) != 1 {
			t.Fatalf("Tokenize(%q) produced %d tokens, want 1", tok.Text, len(again))
		}
		if again[0].Text != tok.Text {
			t.Errorf("retokenized %q = %q, want unchanged", tok.Text, again[0].Text)
		}
	}
}

func TestTokenizeBasic(t *testing.T) {
	toks := Tokenize("The Dark Knight")
	want := []string{"the", "dark", "knight"}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Text != w {
			t.Errorf("token %d = %q, want %q", i, toks[i].Text, w)
		}
		if toks[i].Position != i {
			t.Errorf("token %d position = %d, want %d", i, toks[i].Position, i)
		}
	}
}

func TestTokenizeByteSpans(t *testing.T) {
	input := "Batman Returns"
	toks := Tokenize(input)
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2", len(toks))
	}
	if got := input[toks[0].StartByte:toks[0].EndByte]; got != "Batman" {
		t.Errorf("first span = %q, want %q", got, "Batman")
	}
	if got := input[toks[1].StartByte:toks[1].EndByte]; got != "Returns" {
		t.Errorf("second span = %q, want %q", got, "Returns")
	}
}

func TestSeparatorWeights(t *testing.T) {
	// space is soft (1), period is hard (8)
	toks := Tokenize("dark knight. returns")
	if len(toks) != 3 {
		t.Fatalf("got %d tokens, want 3", len(toks))
	}
	soft := toks[1].WeightedPosition - toks[0].WeightedPosition
	hard := toks[2].WeightedPosition - toks[1].WeightedPosition
	if soft != SoftSeparatorWeight {
		t.Errorf("soft separator distance = %d, want %d", soft, SoftSeparatorWeight)
	}
	if hard != HardSeparatorWeight {
		t.Errorf("hard separator distance = %d, want %d", hard, HardSeparatorWeight)
	}
	if !toks[2].HardBoundary {
		t.Error("token after period should carry a hard boundary")
	}
	if toks[1].HardBoundary {
		t.Error("token after space should not carry a hard boundary")
	}
}

func TestConcatCandidates(t *testing.T) {
	toks := Tokenize("new york city")
	cands := ConcatCandidates(toks, 3)

	got := make(map[string]bool, len(cands))
	for _, c := range cands {
		got[c.Text] = true
	}
	for _, want := range []string{"newyork", "yorkcity", "newyorkcity"} {
		if !got[want] {
			t.Errorf("missing concatenation candidate %q (have %v)", want, cands)
		}
	}
}

func TestConcatCandidatesStopAtHardBoundary(t *testing.T) {
	toks := Tokenize("new york. city")
	for _, c := range ConcatCandidates(toks, 3) {
		if c.Text == "yorkcity" || c.Text == "newyorkcity" {
			t.Errorf("concatenation %q crosses a hard boundary", c.Text)
		}
	}
}

func TestIsNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"1989", true},
		{"3.14", true},
		{"batman", false},
		{"4ever", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsNumeric(c.in); got != c.want {
			t.Errorf("IsNumeric(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

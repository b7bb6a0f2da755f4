package typo

import (
	"sort"
	"testing"

	"github.com/lanternsearch/lantern/internal/settings"
)

func dict(words ...string) []string {
	sort.Strings(words)
	return words
}

func matchWords(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Word
	}
	sort.Strings(out)
	return out
}

func TestBudgetLengthBands(t *testing.T) {
	tt := settings.DefaultTypoTolerance()
	cases := []struct {
		word string
		want int
	}{
		{"a", 0},
		{"bats", 0},
		{"batma", 1},
		{"batmans", 1},
		{"batmobile", 2},
		{"catastrophic", 2},
	}
	for _, c := range cases {
		if got := Budget(c.word, tt); got != c.want {
			t.Errorf("Budget(%q) = %d, want %d", c.word, got, c.want)
		}
	}
}

func TestBudgetDisabled(t *testing.T) {
	tt := settings.DefaultTypoTolerance()
	tt.Enabled = false
	if Budget("batmobile", tt) != 0 {
		t.Error("disabled typo tolerance should budget zero")
	}

	tt = settings.DefaultTypoTolerance()
	tt.DisableOnNumbers = true
	if Budget("198919891", tt) != 0 {
		t.Error("numeric tokens should budget zero under disableOnNumbers")
	}
	if Budget("batmobile", tt) != 2 {
		t.Error("non-numeric tokens keep their budget under disableOnNumbers")
	}
}

func TestMatchWordExact(t *testing.T) {
	d := dict("batman", "batmen", "catwoman")
	ms := MatchWord(d, "batman", 0, false)
	if len(ms) != 1 || ms[0].Word != "batman" || ms[0].Typos != 0 {
		t.Fatalf("exact match = %+v", ms)
	}
}

func TestMatchWordOneTypo(t *testing.T) {
	d := dict("batman", "batmen", "bitmap", "catwoman")
	ms := MatchWord(d, "batmen", 1, false)
	got := matchWords(ms)
	want := []string{"batman", "batmen"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("matches = %v, want %v", got, want)
	}
	for _, m := range ms {
		switch m.Word {
		case "batmen":
			if m.Typos != 0 {
				t.Errorf("batmen typos = %d, want 0", m.Typos)
			}
		case "batman":
			if m.Typos != 1 {
				t.Errorf("batman typos = %d, want 1", m.Typos)
			}
		}
	}
}

func TestMatchWordFirstCharacterCountsDouble(t *testing.T) {
	// "catman" is one edit from "batman", but the edit is on the first
	// character, so it is charged as two typos.
	d := dict("catman")
	if ms := MatchWord(d, "batman", 1, false); len(ms) != 0 {
		t.Fatalf("budget 1 should not admit a first-character typo: %+v", ms)
	}
	ms := MatchWord(d, "batman", 2, false)
	if len(ms) != 1 {
		t.Fatalf("budget 2 should admit a first-character typo, got %+v", ms)
	}
	if ms[0].Typos != 2 {
		t.Errorf("first-character typo charged %d, want 2", ms[0].Typos)
	}
}

func TestMatchWordPrefix(t *testing.T) {
	d := dict("bat", "batman", "batmobile", "candle")
	ms := MatchWord(d, "batm", 0, true)
	got := matchWords(ms)
	want := []string{"batman", "batmobile"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("prefix matches = %v, want %v", got, want)
	}
	for _, m := range ms {
		if !m.Prefix {
			t.Errorf("%s should be flagged as a prefix match", m.Word)
		}
		if m.Typos != 0 {
			t.Errorf("%s typos = %d, want 0", m.Word, m.Typos)
		}
	}
}

func TestMatchWordPrefixOffByDefault(t *testing.T) {
	d := dict("batman")
	if ms := MatchWord(d, "batm", 0, false); len(ms) != 0 {
		t.Fatalf("non-prefix search should not match prefixes: %+v", ms)
	}
}

func TestMatchWordAgreesWithPerWordScan(t *testing.T) {
	// long runs of shared dead prefixes must not change the outcome:
	// walking the full dictionary matches scanning each word alone
	d := dict(
		"batman", "batmen", "batmobile", "battalion", "battery", "battle",
		"battlefield", "battleground", "battleship", "catman", "cattle",
		"zeal", "zealot", "zebra", "zebrafish", "zebroid", "zen", "zenith",
	)
	for _, word := range []string{"batman", "zebra", "cacman", "xyz"} {
		for budget := 0; budget <= 2; budget++ {
			for _, prefix := range []bool{false, true} {
				got := MatchWord(d, word, budget, prefix)
				var want []Match
				for _, w := range d {
					want = append(want, MatchWord([]string{w}, word, budget, prefix)...)
				}
				if len(got) != len(want) {
					t.Fatalf("MatchWord(%q, budget %d, prefix %v) = %v, per-word scan %v",
						word, budget, prefix, got, want)
				}
				for i := range want {
					if got[i] != want[i] {
						t.Errorf("MatchWord(%q, budget %d, prefix %v)[%d] = %+v, want %+v",
							word, budget, prefix, i, got[i], want[i])
					}
				}
			}
		}
	}
}

func TestMatchWordBudgetMonotonicity(t *testing.T) {
	// every word matched at budget b must also match at budget b+1
	d := dict("batman", "batmen", "bitmap", "rodman", "batmobile", "cat")
	for _, q := range []string{"batman", "botman", "batmoble"} {
		prev := map[string]bool{}
		for budget := 0; budget <= 2; budget++ {
			cur := map[string]bool{}
			for _, m := range MatchWord(d, q, budget, false) {
				cur[m.Word] = true
			}
			for w := range prev {
				if !cur[w] {
					t.Errorf("query %q: %q matched at budget %d but not %d", q, w, budget-1, budget)
				}
			}
			prev = cur
		}
	}
}

func TestMatchWordEmptyInputs(t *testing.T) {
	if ms := MatchWord(nil, "batman", 2, false); ms != nil {
		t.Errorf("empty dictionary should match nothing, got %+v", ms)
	}
	if ms := MatchWord(dict("batman"), "", 2, false); ms != nil {
		t.Errorf("empty query should match nothing, got %+v", ms)
	}
}

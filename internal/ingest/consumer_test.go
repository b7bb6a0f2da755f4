package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/index"
	"github.com/lanternsearch/lantern/internal/settings"
	"github.com/lanternsearch/lantern/pkg/resilience"
)

func newTestConsumer(t *testing.T) (*Consumer, *index.Registry) {
	t.Helper()
	reg := index.NewRegistry(16, nil, func(string) (document.Store, error) {
		return document.NewMemStore(), nil
	})
	retry := resilience.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond}
	return NewConsumer(reg, retry, slog.New(slog.DiscardHandler)), reg
}

func handle(t *testing.T, c *Consumer, key string, mut Mutation) {
	t.Helper()
	raw, err := json.Marshal(mut)
	if err != nil {
		t.Fatalf("encoding mutation: %v", err)
	}
	if err := c.Handle(context.Background(), []byte(key), raw); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestHandleAddDocuments(t *testing.T) {
	c, reg := newTestConsumer(t)
	handle(t, c, "movies", Mutation{
		Action: ActionAddDocuments,
		Documents: []map[string]any{
			{"id": 1, "title": "Batman"},
			{"id": 2, "title": "Catwoman"},
		},
	})

	idx, err := reg.Get("movies")
	if err != nil {
		t.Fatalf("index not created: %v", err)
	}
	snap := idx.Snapshot()
	if snap.DocCount() != 2 || !snap.HasWord("batman") {
		t.Errorf("docs=%d", snap.DocCount())
	}
}

func TestHandleDeleteDocuments(t *testing.T) {
	c, reg := newTestConsumer(t)
	handle(t, c, "movies", Mutation{
		Action:    ActionAddDocuments,
		Documents: []map[string]any{{"id": 1, "title": "Batman"}},
	})
	handle(t, c, "movies", Mutation{Action: ActionDeleteDocuments, IDs: []string{"1"}})

	idx, err := reg.Get("movies")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n := idx.Snapshot().DocCount(); n != 0 {
		t.Errorf("doc count = %d, want 0", n)
	}
}

func TestHandleUpdateSettings(t *testing.T) {
	c, reg := newTestConsumer(t)
	handle(t, c, "movies", Mutation{
		Action:    ActionAddDocuments,
		Documents: []map[string]any{{"id": 1, "title": "the Batman"}},
	})
	handle(t, c, "movies", Mutation{
		Action:   ActionUpdateSettings,
		Settings: &SettingsPayload{StopWords: []string{"the"}},
	})

	idx, _ := reg.Get("movies")
	snap := idx.Snapshot()
	if !snap.Settings.IsStopWord("the") {
		t.Error("stop word setting not applied")
	}
	if snap.HasWord("the") {
		t.Error("settings change did not reindex")
	}
}

func TestHandleIndexNameFromKafkaKey(t *testing.T) {
	c, reg := newTestConsumer(t)
	// index name absent from the payload falls back to the message key
	handle(t, c, "books", Mutation{
		Action:    ActionAddDocuments,
		Documents: []map[string]any{{"id": 1, "title": "Dune"}},
	})
	if _, err := reg.Get("books"); err != nil {
		t.Errorf("index not created from key: %v", err)
	}
}

func TestHandleDropsMalformedEvents(t *testing.T) {
	c, reg := newTestConsumer(t)
	if err := c.Handle(context.Background(), []byte("movies"), []byte("{not json")); err != nil {
		t.Errorf("undecodable event should be dropped, got %v", err)
	}
	if err := c.Handle(context.Background(), nil, []byte(`{"action":"addDocuments"}`)); err != nil {
		t.Errorf("event without index name should be dropped, got %v", err)
	}
	if names := reg.Names(); len(names) != 0 {
		t.Errorf("dropped events created indexes: %v", names)
	}
}

func TestHandleUnknownActionFails(t *testing.T) {
	c, _ := newTestConsumer(t)
	raw, _ := json.Marshal(Mutation{Index: "movies", Action: "truncate"})
	if err := c.Handle(context.Background(), nil, raw); err == nil {
		t.Error("unknown action should fail")
	}
}

func TestToSettingsDefaults(t *testing.T) {
	var p *SettingsPayload
	s, err := p.ToSettings()
	if err != nil {
		t.Fatalf("ToSettings: %v", err)
	}
	def := settings.Default()
	if s.PrimaryKey != def.PrimaryKey || s.MaxTotalHits != def.MaxTotalHits || !s.PrefixSearch {
		t.Errorf("nil payload should yield defaults, got %+v", s)
	}
}

func TestToSettingsMerges(t *testing.T) {
	off := false
	p := &SettingsPayload{
		PrimaryKey:   "uid",
		RankingRules: []string{"words", "typo", "popularity:desc"},
		StopWords:    []string{"the"},
		PrefixSearch: &off,
		TypoTolerance: &TypoTolerancePayload{
			Enabled:               &off,
			MinWordSizeForOneTypo: 4,
		},
	}
	s, err := p.ToSettings()
	if err != nil {
		t.Fatalf("ToSettings: %v", err)
	}
	if s.PrimaryKey != "uid" {
		t.Errorf("primary key = %q", s.PrimaryKey)
	}
	if len(s.RankingRules) != 3 || s.RankingRules[2].Kind != settings.RuleCustomDesc {
		t.Errorf("ranking rules = %+v", s.RankingRules)
	}
	if !s.IsStopWord("the") {
		t.Error("stop words not applied")
	}
	if s.PrefixSearch {
		t.Error("prefixSearch override not applied")
	}
	if s.TypoTolerance.Enabled {
		t.Error("typo tolerance enable override not applied")
	}
	if s.TypoTolerance.MinWordSizeForOneTypo != 4 {
		t.Errorf("minWordSizeForOneTypo = %d", s.TypoTolerance.MinWordSizeForOneTypo)
	}
	if s.TypoTolerance.MinWordSizeForTwoTypos != settings.DefaultTypoTolerance().MinWordSizeForTwoTypos {
		t.Error("absent typo field lost its default")
	}
}

func TestToSettingsRejectsUnknownRankingRule(t *testing.T) {
	p := &SettingsPayload{RankingRules: []string{"words", "chaos?"}}
	if _, err := p.ToSettings(); err == nil {
		t.Error("unknown ranking rule accepted")
	}
}

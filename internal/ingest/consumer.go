// Package ingest feeds the index mutation streams from Kafka. Events are
// keyed by index name, so one index's mutations always land on one
// partition and arrive in submission order; the consumer hands them to the
// index's FIFO mutation channel unchanged.
package ingest

import (
	"context"
	"log/slog"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/index"
	"github.com/lanternsearch/lantern/internal/settings"
	apperrors "github.com/lanternsearch/lantern/pkg/errors"
	"github.com/lanternsearch/lantern/pkg/kafka"
	"github.com/lanternsearch/lantern/pkg/resilience"
)

const (
	ActionAddDocuments    = "addDocuments"
	ActionDeleteDocuments = "deleteDocuments"
	ActionUpdateSettings  = "updateSettings"
)

// Mutation is the wire form of one index mutation event.
type Mutation struct {
	Index     string           `json:"index"`
	Action    string           `json:"action"`
	Documents []map[string]any `json:"documents,omitempty"`
	IDs       []string         `json:"ids,omitempty"`
	Settings  *SettingsPayload `json:"settings,omitempty"`
}

// SettingsPayload is the wire form of index settings, with ranking rules
// as their textual names.
type SettingsPayload struct {
	PrimaryKey           string                         `json:"primaryKey,omitempty"`
	SearchableAttributes []string                       `json:"searchableAttributes,omitempty"`
	FilterableAttributes []string                       `json:"filterableAttributes,omitempty"`
	SortableAttributes   []string                       `json:"sortableAttributes,omitempty"`
	RankingRules         []string                       `json:"rankingRules,omitempty"`
	StopWords            []string                       `json:"stopWords,omitempty"`
	Synonyms             map[string][]string            `json:"synonyms,omitempty"`
	DistinctAttribute    string                         `json:"distinctAttribute,omitempty"`
	SortFacetValuesBy    map[string]settings.FacetOrder `json:"sortFacetValuesBy,omitempty"`
	TypoTolerance        *TypoTolerancePayload          `json:"typoTolerance,omitempty"`
	PrefixSearch         *bool                          `json:"prefixSearch,omitempty"`
	MaxTotalHits         int                            `json:"maxTotalHits,omitempty"`
}

type TypoTolerancePayload struct {
	Enabled                *bool    `json:"enabled,omitempty"`
	MinWordSizeForOneTypo  int      `json:"minWordSizeForOneTypo,omitempty"`
	MinWordSizeForTwoTypos int      `json:"minWordSizeForTwoTypos,omitempty"`
	DisableOnWords         []string `json:"disableOnWords,omitempty"`
	DisableOnAttributes    []string `json:"disableOnAttributes,omitempty"`
	DisableOnNumbers       bool     `json:"disableOnNumbers,omitempty"`
}

// ToSettings merges the payload over the defaults: absent fields keep their
// default values, present ones override.
func (p *SettingsPayload) ToSettings() (settings.Settings, error) {
	s := settings.Default()
	if p == nil {
		return s, nil
	}
	if p.PrimaryKey != "" {
		s.PrimaryKey = p.PrimaryKey
	}
	if p.SearchableAttributes != nil {
		s.SearchableAttributes = p.SearchableAttributes
	}
	if p.FilterableAttributes != nil {
		s.FilterableAttributes = p.FilterableAttributes
	}
	if p.SortableAttributes != nil {
		s.SortableAttributes = p.SortableAttributes
	}
	if p.RankingRules != nil {
		rules := make([]settings.RankingRule, 0, len(p.RankingRules))
		for _, raw := range p.RankingRules {
			r, err := settings.ParseRankingRule(raw)
			if err != nil {
				return s, err
			}
			rules = append(rules, r)
		}
		s.RankingRules = rules
	}
	if p.StopWords != nil {
		s.StopWords = p.StopWords
	}
	if p.Synonyms != nil {
		s.Synonyms = p.Synonyms
	}
	if p.DistinctAttribute != "" {
		s.DistinctAttribute = p.DistinctAttribute
	}
	if p.SortFacetValuesBy != nil {
		s.SortFacetValuesBy = p.SortFacetValuesBy
	}
	if p.PrefixSearch != nil {
		s.PrefixSearch = *p.PrefixSearch
	}
	if p.MaxTotalHits > 0 {
		s.MaxTotalHits = p.MaxTotalHits
	}
	if tt := p.TypoTolerance; tt != nil {
		if tt.Enabled != nil {
			s.TypoTolerance.Enabled = *tt.Enabled
		}
		if tt.MinWordSizeForOneTypo > 0 {
			s.TypoTolerance.MinWordSizeForOneTypo = tt.MinWordSizeForOneTypo
		}
		if tt.MinWordSizeForTwoTypos > 0 {
			s.TypoTolerance.MinWordSizeForTwoTypos = tt.MinWordSizeForTwoTypos
		}
		s.TypoTolerance.DisableOnWords = tt.DisableOnWords
		s.TypoTolerance.DisableOnAttributes = tt.DisableOnAttributes
		s.TypoTolerance.DisableOnNumbers = tt.DisableOnNumbers
	}
	return s, nil
}

// Consumer routes mutation events from the mutation topic into the index
// registry.
type Consumer struct {
	registry *index.Registry
	retry    resilience.RetryConfig
	log      *slog.Logger
}

func NewConsumer(registry *index.Registry, retry resilience.RetryConfig, log *slog.Logger) *Consumer {
	return &Consumer{registry: registry, retry: retry, log: log}
}

// Handle is the kafka message handler. Malformed events are logged and
// dropped so they cannot wedge the partition; mutation application is
// retried, since store errors are usually transient.
func (c *Consumer) Handle(ctx context.Context, key, value []byte) error {
	mut, err := kafka.DecodeJSON[Mutation](value)
	if err != nil {
		c.log.Error("dropping undecodable mutation event",
			slog.String("key", string(key)),
			slog.String("error", err.Error()))
		return nil
	}
	if mut.Index == "" {
		mut.Index = string(key)
	}
	if mut.Index == "" {
		c.log.Error("dropping mutation event without index name")
		return nil
	}

	err = resilience.Retry(ctx, "apply mutation", c.retry, func() error {
		return c.apply(ctx, mut)
	})
	if err != nil {
		c.log.Error("mutation failed after retries",
			slog.String("index", mut.Index),
			slog.String("action", mut.Action),
			slog.String("error", err.Error()))
	}
	return err
}

func (c *Consumer) apply(ctx context.Context, mut Mutation) error {
	s, err := mut.Settings.ToSettings()
	if err != nil {
		return err
	}
	idx, err := c.registry.GetOrCreate(ctx, mut.Index, s)
	if err != nil {
		return err
	}

	switch mut.Action {
	case ActionAddDocuments:
		primaryKey := idx.Snapshot().Settings.PrimaryKey
		docs := make([]document.Document, 0, len(mut.Documents))
		for _, raw := range mut.Documents {
			doc, err := document.New(raw, primaryKey)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return idx.AddDocuments(ctx, docs)
	case ActionDeleteDocuments:
		return idx.DeleteDocuments(ctx, mut.IDs)
	case ActionUpdateSettings:
		return idx.UpdateSettings(ctx, s)
	default:
		return apperrors.Newf(apperrors.ErrInvalidDocument, 400, "unknown mutation action %q", mut.Action)
	}
}

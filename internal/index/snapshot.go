package index

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/settings"
)

// Snapshot is an immutable point-in-time view of one index: dictionary,
// posting lists, id mappings, and per-document field data. Readers acquire
// the current snapshot once per query and never take locks; writers publish
// a new generation via atomic pointer swap.
type Snapshot struct {
	// Generation increases by one per published mutation batch.
	Generation uint64
	Settings   settings.Settings

	// words is the sorted dictionary of all indexed normalized words.
	words    []string
	postings map[string]*PostingList

	// attrNames maps attribute id to flattened attribute name; attrIDs is
	// the inverse.
	attrNames []string
	attrIDs   map[string]uint16

	// externalIDs maps internal DocID to primary key; internalIDs is the
	// inverse. live holds the DocIDs visible in this snapshot: internal
	// ids are never reused, so deletions only shrink live.
	externalIDs []string
	internalIDs map[string]DocID
	live        *roaring.Bitmap

	// fields holds each live document's flattened attributes, used by the
	// filter evaluator, sort rules, facets, and distinct processing.
	fields map[DocID]map[string]document.Value

	// attrTokens counts tokens per (doc, attr), letting the exactness
	// rule detect whole-attribute matches without retokenizing.
	attrTokens map[DocID]map[uint16]int

	// docWords lists the distinct words indexed for each document, so
	// deletion and replacement touch only the affected posting lists.
	docWords map[DocID][]string
}

// emptySnapshot returns the generation-zero snapshot for the given settings.
func emptySnapshot(s settings.Settings) *Snapshot {
	return &Snapshot{
		Settings:    s,
		postings:    make(map[string]*PostingList),
		attrIDs:     make(map[string]uint16),
		internalIDs: make(map[string]DocID),
		live:        roaring.New(),
		fields:      make(map[DocID]map[string]document.Value),
		attrTokens:  make(map[DocID]map[uint16]int),
		docWords:    make(map[DocID][]string),
	}
}

// DocCount returns the number of live documents.
func (s *Snapshot) DocCount() int {
	return int(s.live.GetCardinality())
}

// Live returns the set of live internal ids. Callers must treat it as
// read-only; clone before mutating.
func (s *Snapshot) Live() *roaring.Bitmap {
	return s.live
}

// LookupExact returns the posting list for a normalized word, or nil.
func (s *Snapshot) LookupExact(word string) *PostingList {
	return s.postings[word]
}

// Dictionary returns the sorted word dictionary. Read-only.
func (s *Snapshot) Dictionary() []string {
	return s.words
}

// WordsWithPrefix returns the dictionary words with the given prefix, in
// sorted order, capped at limit (0 means no cap).
func (s *Snapshot) WordsWithPrefix(prefix string, limit int) []string {
	lo := sort.SearchStrings(s.words, prefix)
	var out []string
	for i := lo; i < len(s.words) && strings.HasPrefix(s.words[i], prefix); i++ {
		out = append(out, s.words[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// HasWord reports whether word is in the dictionary.
func (s *Snapshot) HasWord(word string) bool {
	i := sort.SearchStrings(s.words, word)
	return i < len(s.words) && s.words[i] == word
}

// AttrName resolves an attribute id to its flattened name.
func (s *Snapshot) AttrName(id uint16) string {
	if int(id) < len(s.attrNames) {
		return s.attrNames[id]
	}
	return ""
}

// AttrID resolves a flattened attribute name to its id.
func (s *Snapshot) AttrID(name string) (uint16, bool) {
	id, ok := s.attrIDs[name]
	return id, ok
}

// ExternalID resolves an internal id to the document's primary key.
func (s *Snapshot) ExternalID(doc DocID) (string, bool) {
	if int(doc) < len(s.externalIDs) && s.live.Contains(doc) {
		return s.externalIDs[doc], true
	}
	return "", false
}

// InternalID resolves a primary key to the internal id, if the document is
// live in this snapshot.
func (s *Snapshot) InternalID(external string) (DocID, bool) {
	id, ok := s.internalIDs[external]
	if !ok || !s.live.Contains(id) {
		return 0, false
	}
	return id, true
}

// FieldValue returns a live document's flattened attribute value.
func (s *Snapshot) FieldValue(doc DocID, attr string) (document.Value, bool) {
	f, ok := s.fields[doc]
	if !ok {
		return document.Value{}, false
	}
	v, ok := f[attr]
	return v, ok
}

// FieldsOf returns a live document's flattened attribute map. Read-only.
func (s *Snapshot) FieldsOf(doc DocID) (map[string]document.Value, bool) {
	f, ok := s.fields[doc]
	return f, ok
}

// AttrTokenCount returns the number of tokens indexed for (doc, attr).
func (s *Snapshot) AttrTokenCount(doc DocID, attr uint16) int {
	counts, ok := s.attrTokens[doc]
	if !ok {
		return 0
	}
	return counts[attr]
}

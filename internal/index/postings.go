// Package index implements the inverted index: posting lists keyed by
// normalized word, a sorted word dictionary with prefix lookup, immutable
// point-in-time snapshots, and the per-index FIFO mutation stream that
// publishes new snapshot generations atomically.
package index

import (
	"github.com/RoaringBitmap/roaring"
)

// DocID is the internal, dense document identifier. External primary keys
// map onto DocIDs at indexing time; the internal id is also the ultimate
// ranking tie-break.
type DocID = uint32

// Position locates one occurrence of a word inside a document attribute.
type Position struct {
	// Attr indexes the snapshot's attribute table.
	Attr uint16
	// Ordinal is the token's index within the attribute's token stream.
	Ordinal uint16
	// Weighted is the separator-weighted position used by the proximity
	// ranking rule.
	Weighted uint32
}

// PostingList holds every occurrence of one word: the set of documents
// containing it plus per-document positions. Lists are immutable once a
// snapshot is published; mutation clones the affected list.
type PostingList struct {
	// Docs is the set of internal ids of documents containing the word.
	Docs *roaring.Bitmap
	// Positions maps each document to the word's occurrences in it,
	// ordered by (Attr, Ordinal).
	Positions map[DocID][]Position
}

// NewPostingList creates an empty posting list.
func NewPostingList() *PostingList {
	return &PostingList{
		Docs:      roaring.New(),
		Positions: make(map[DocID][]Position),
	}
}

// Clone returns a deep copy safe to mutate while the original stays
// published.
func (p *PostingList) Clone() *PostingList {
	c := &PostingList{
		Docs:      p.Docs.Clone(),
		Positions: make(map[DocID][]Position, len(p.Positions)),
	}
	for id, positions := range p.Positions {
		cp := make([]Position, len(positions))
		copy(cp, positions)
		c.Positions[id] = cp
	}
	return c
}

// Add records an occurrence of the word in doc.
func (p *PostingList) Add(doc DocID, pos Position) {
	p.Docs.Add(doc)
	p.Positions[doc] = append(p.Positions[doc], pos)
}

// Remove drops all occurrences in doc.
func (p *PostingList) Remove(doc DocID) {
	p.Docs.Remove(doc)
	delete(p.Positions, doc)
}

// IsEmpty reports whether no document contains the word any more.
func (p *PostingList) IsEmpty() bool {
	return p.Docs.IsEmpty()
}

package index

import (
	"math"
	"sort"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/settings"
	"github.com/lanternsearch/lantern/internal/tokenizer"
)

// builder derives the next snapshot generation from the current one. Only
// the index's single mutation goroutine calls it, so no locking is needed;
// published snapshots are never modified, only cloned where a mutation
// touches them.
type builder struct {
	cur *Snapshot
}

func newBuilder(s settings.Settings) *builder {
	return &builder{cur: emptySnapshot(s)}
}

// next starts a copy-on-write descendant of the current snapshot. Top-level
// maps are copied; posting lists and per-document entries are cloned lazily
// by the mutation that touches them.
func (b *builder) next() *Snapshot {
	cur := b.cur
	n := &Snapshot{
		Generation:  cur.Generation + 1,
		Settings:    cur.Settings,
		words:       cur.words,
		postings:    make(map[string]*PostingList, len(cur.postings)),
		attrNames:   append([]string(nil), cur.attrNames...),
		attrIDs:     make(map[string]uint16, len(cur.attrIDs)),
		externalIDs: append([]string(nil), cur.externalIDs...),
		internalIDs: make(map[string]DocID, len(cur.internalIDs)),
		live:        cur.live.Clone(),
		fields:      make(map[DocID]map[string]document.Value, len(cur.fields)),
		attrTokens:  make(map[DocID]map[uint16]int, len(cur.attrTokens)),
		docWords:    make(map[DocID][]string, len(cur.docWords)),
	}
	for w, p := range cur.postings {
		n.postings[w] = p
	}
	for k, v := range cur.attrIDs {
		n.attrIDs[k] = v
	}
	for k, v := range cur.internalIDs {
		n.internalIDs[k] = v
	}
	for k, v := range cur.fields {
		n.fields[k] = v
	}
	for k, v := range cur.attrTokens {
		n.attrTokens[k] = v
	}
	for k, v := range cur.docWords {
		n.docWords[k] = v
	}
	return n
}

// AddDocuments indexes docs into a new snapshot generation. A document
// whose primary key is already present replaces the prior version in full.
func (b *builder) AddDocuments(docs []document.Document) *Snapshot {
	n := b.next()
	dict := newDictEdit(n)
	for _, doc := range docs {
		id, existed := n.internalIDs[doc.ID]
		if existed && n.live.Contains(id) {
			unindexDocument(n, dict, id)
		}
		if !existed {
			id = DocID(len(n.externalIDs))
			n.externalIDs = append(n.externalIDs, doc.ID)
			n.internalIDs[doc.ID] = id
		}
		indexDocument(n, dict, id, doc)
	}
	dict.commit(n)
	b.cur = n
	return n
}

// DeleteDocuments removes documents by primary key. Unknown ids are
// ignored. Removal is atomic with respect to readers: the prior snapshot
// keeps its full posting lists.
func (b *builder) DeleteDocuments(ids []string) *Snapshot {
	n := b.next()
	dict := newDictEdit(n)
	for _, external := range ids {
		id, ok := n.internalIDs[external]
		if !ok || !n.live.Contains(id) {
			continue
		}
		unindexDocument(n, dict, id)
	}
	dict.commit(n)
	b.cur = n
	return n
}

// UpdateSettings swaps settings without touching postings. The caller is
// responsible for triggering a full rebuild when the change affects
// tokenization or filtering.
func (b *builder) UpdateSettings(s settings.Settings) *Snapshot {
	n := b.next()
	n.Settings = s
	b.cur = n
	return n
}

// Snapshot returns the builder's latest generation.
func (b *builder) Snapshot() *Snapshot {
	return b.cur
}

// dictEdit batches dictionary additions and removals for one mutation, so
// the sorted word slice is rebuilt at most once per batch.
type dictEdit struct {
	added   map[string]struct{}
	removed map[string]struct{}
}

func newDictEdit(*Snapshot) *dictEdit {
	return &dictEdit{
		added:   make(map[string]struct{}),
		removed: make(map[string]struct{}),
	}
}

func (d *dictEdit) add(word string) {
	delete(d.removed, word)
	d.added[word] = struct{}{}
}

func (d *dictEdit) remove(word string) {
	delete(d.added, word)
	d.removed[word] = struct{}{}
}

func (d *dictEdit) commit(n *Snapshot) {
	if len(d.added) == 0 && len(d.removed) == 0 {
		return
	}
	words := make([]string, 0, len(n.words)+len(d.added))
	for _, w := range n.words {
		if _, gone := d.removed[w]; gone {
			continue
		}
		delete(d.added, w)
		words = append(words, w)
	}
	for w := range d.added {
		words = append(words, w)
	}
	sort.Strings(words)
	n.words = words
}

// mutablePosting returns a posting list safe to modify in generation n,
// cloning the published one on first touch.
func mutablePosting(n *Snapshot, word string, touched map[string]bool) *PostingList {
	p, ok := n.postings[word]
	if !ok {
		p = NewPostingList()
		n.postings[word] = p
		touched[word] = true
		return p
	}
	if !touched[word] {
		p = p.Clone()
		n.postings[word] = p
		touched[word] = true
	}
	return p
}

// indexDocument tokenizes every searchable attribute of doc and records
// postings, field values, and attribute token counts under internal id.
func indexDocument(n *Snapshot, dict *dictEdit, id DocID, doc document.Document) {
	touched := make(map[string]bool)
	words := make(map[string]struct{})
	attrCounts := make(map[uint16]int)

	for _, attr := range document.SortedKeys(doc.Fields) {
		if _, searchable := n.Settings.SearchableRank(attr); !searchable {
			continue
		}
		attrID := internAttr(n, attr)
		chunks := searchableText(doc.Fields[attr])
		ordinal := 0
		base := uint32(0)
		for ci, chunk := range chunks {
			toks := tokenizer.Tokenize(chunk)
			if len(toks) == 0 {
				continue
			}
			if ci > 0 {
				// Array elements are separated by a hard boundary
				// so proximity never links cheaply across them.
				base += tokenizer.HardSeparatorWeight
			}
			for _, tok := range toks {
				if ordinal > math.MaxUint16 {
					break
				}
				if !n.Settings.IsStopWord(tok.Text) {
					p := mutablePosting(n, tok.Text, touched)
					p.Add(id, Position{
						Attr:     attrID,
						Ordinal:  uint16(ordinal),
						Weighted: base + uint32(tok.WeightedPosition),
					})
					if _, seen := words[tok.Text]; !seen {
						words[tok.Text] = struct{}{}
						dict.add(tok.Text)
					}
				}
				ordinal++
			}
			base += uint32(toks[len(toks)-1].WeightedPosition)
		}
		if ordinal > 0 {
			attrCounts[attrID] = ordinal
		}
	}

	n.live.Add(id)
	n.fields[id] = doc.Fields
	n.attrTokens[id] = attrCounts
	wordList := make([]string, 0, len(words))
	for w := range words {
		wordList = append(wordList, w)
	}
	sort.Strings(wordList)
	n.docWords[id] = wordList
}

// unindexDocument removes every trace of internal id from generation n.
func unindexDocument(n *Snapshot, dict *dictEdit, id DocID) {
	touched := make(map[string]bool)
	for _, word := range n.docWords[id] {
		p := mutablePosting(n, word, touched)
		p.Remove(id)
		if p.IsEmpty() {
			delete(n.postings, word)
			dict.remove(word)
		}
	}
	n.live.Remove(id)
	delete(n.fields, id)
	delete(n.attrTokens, id)
	delete(n.docWords, id)
}

// internAttr assigns or resolves the attribute id for a flattened name.
func internAttr(n *Snapshot, attr string) uint16 {
	if id, ok := n.attrIDs[attr]; ok {
		return id
	}
	id := uint16(len(n.attrNames))
	n.attrNames = append(n.attrNames, attr)
	n.attrIDs[attr] = id
	return id
}

// searchableText extracts the indexable text chunks from an attribute
// value: strings as-is, numbers and booleans via their canonical rendering,
// array elements as separate chunks.
func searchableText(v document.Value) []string {
	switch v.Kind() {
	case document.KindString:
		if v.Str() == "" {
			return nil
		}
		return []string{v.Str()}
	case document.KindNumber, document.KindBool:
		return []string{v.FacetString()}
	case document.KindArray:
		var out []string
		for _, e := range v.Elems() {
			out = append(out, searchableText(e)...)
		}
		return out
	default:
		return nil
	}
}

package document

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/lanternsearch/lantern/pkg/errors"
)

// Document is a flattened attribute map plus its extracted primary key.
// The primary key value is rendered as a string and is immutable for the
// document's lifetime; re-adding a document with the same id replaces the
// prior version in full.
type Document struct {
	ID     string
	Fields map[string]Value
}

// New flattens a decoded JSON object and extracts its primary key.
func New(raw map[string]any, primaryKey string) (Document, error) {
	fields := Flatten(raw)
	pk, ok := fields[primaryKey]
	if !ok {
		return Document{}, apperrors.Newf(apperrors.ErrInvalidDocument, http.StatusBadRequest,
			"document is missing primary key attribute %q", primaryKey)
	}
	id, err := renderID(pk)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: fields}, nil
}

// renderID converts a primary key value to its canonical string form.
// Only strings and integers are accepted, matching the product contract.
func renderID(v Value) (string, error) {
	switch v.Kind() {
	case KindString:
		if v.Str() == "" {
			return "", apperrors.New(apperrors.ErrInvalidDocument, http.StatusBadRequest,
				"primary key must not be empty")
		}
		return v.Str(), nil
	case KindNumber:
		if v.Num() != float64(int64(v.Num())) {
			return "", apperrors.New(apperrors.ErrInvalidDocument, http.StatusBadRequest,
				"primary key number must be an integer")
		}
		return fmt.Sprintf("%d", int64(v.Num())), nil
	default:
		return "", apperrors.Newf(apperrors.ErrInvalidDocument, http.StatusBadRequest,
			"primary key must be a string or integer, got %s", v.Kind())
	}
}

// Field returns the value of a flattened attribute.
func (d Document) Field(name string) (Value, bool) {
	v, ok := d.Fields[name]
	return v, ok
}

// Store is the durable document storage collaborator. Snapshot builds read
// every document through it and hit materialisation fetches by id.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put inserts or fully replaces documents by id.
	Put(ctx context.Context, docs []Document) error
	// Get fetches one document; it returns ErrDocumentNotFound when absent.
	Get(ctx context.Context, id string) (Document, error)
	// Delete removes documents by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error
	// ForEach visits every stored document. Iteration order is unspecified.
	ForEach(ctx context.Context, fn func(Document) error) error
	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)
	Close() error
}

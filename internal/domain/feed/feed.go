package feed

import (
	"context"
	"errors"
)

var ErrDocumentNotFound = errors.New("document not found")

// ChangeKind is the kind of a single document change.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Document is a schema-less record of an external collection.
// Fields must be converted to typed values before leaving the feed boundary.
type Document struct {
	ID     string
	Fields map[string]any
}

// Change is one entry of a change batch.
type Change struct {
	Kind ChangeKind
	Doc  Document
}

// Handler receives change batches. Sources may invoke it from their own goroutine.
type Handler func(changes []Change)

// ErrorHandler is told when a subscription ends on its own because of err.
// It is not called after the subscription was stopped by its owner.
type ErrorHandler func(err error)

// Source is an external mutable collection with a change stream.
type Source interface {
	Scan(ctx context.Context, collection string) ([]Document, error)
	// Subscribe starts delivering change batches to h. The returned function
	// stops the subscription and may be called more than once.
	Subscribe(ctx context.Context, collection string, h Handler, onErr ErrorHandler) (func(), error)
}

// DocumentStore mutates single documents of a collection.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}

package port

import (
	"context"
	"errors"
)

// Store defines the minimal contract for a document-oriented realtime store.
// Implementations must be concurrency-safe. All methods are context-aware to
// allow caller-driven timeouts/cancellation.
//
// Collections are addressed by path segments, e.g. ["conversations"] or
// ["conversations", key, "messages"]; a document path appends the document id
// as the final segment. LiveQuery is snapshot-based, not delta-based: every
// matching change re-delivers the full result set, and the same payload may
// be delivered more than once. Callers diff snapshots themselves.
type Store interface {
	// Append creates a new document in the collection at path and returns
	// the store-assigned document id.
	Append(ctx context.Context, path []string, fields map[string]any) (string, error)

	// Put creates or replaces the document with the given id in the
	// collection at path. Used for documents addressed by a natural key.
	Put(ctx context.Context, path []string, id string, fields map[string]any) error

	// Update applies a partial field patch to the document at path.
	// It fails with ErrNotFound if the document does not exist.
	Update(ctx context.Context, path []string, patch map[string]any) error

	// UpdateIf applies patch only when the document at path also matches
	// every filter in when. A document that exists but fails the filters is
	// left untouched and no error is returned; a missing document fails with
	// ErrNotFound. This is the atomic check-and-set used for state flips that
	// must happen at most once.
	UpdateIf(ctx context.Context, path []string, patch map[string]any, when []Filter) error

	// Query performs a one-shot read of the collection at path.
	Query(ctx context.Context, path []string, q Query) ([]Document, error)

	// Count returns the number of documents matching the filters without
	// fetching them.
	Count(ctx context.Context, path []string, filters []Filter) (int, error)

	// LiveQuery opens a push-based live read: onSnapshot receives the full
	// current result set immediately and again after every matching change.
	// The returned CancelFunc is idempotent and, once it returns, guarantees
	// no further onSnapshot invocations.
	LiveQuery(ctx context.Context, path []string, q Query, onSnapshot OnSnapshot) (CancelFunc, error)

	// Close releases any resources held by the store.
	Close(ctx context.Context) error
}

// Document is one stored record with its id and raw field values.
type Document struct {
	ID     string
	Fields map[string]any
}

// Op enumerates the predicate operators a Filter may use.
type Op string

const (
	// OpEqual matches documents whose field equals the filter value.
	OpEqual Op = "=="
	// OpArrayContains matches documents whose array field contains the value.
	OpArrayContains Op = "array-contains"
)

// Filter is one predicate of a query. Filters combine with AND.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// OrderBy sorts results by a single field, typically a timestamp.
type OrderBy struct {
	Field      string
	Descending bool
}

// Query bundles the optional predicates of a read. A zero Query returns the
// whole collection in unspecified order.
type Query struct {
	Filters []Filter
	OrderBy *OrderBy
	Limit   int // 0 means no limit
}

// OnSnapshot receives the full result set of a live query.
type OnSnapshot func(docs []Document)

// CancelFunc stops a live query. Safe to call multiple times.
type CancelFunc func()

// ErrNotFound signals that a document addressed by path does not exist.
var ErrNotFound = errors.New("docstore: document not found")

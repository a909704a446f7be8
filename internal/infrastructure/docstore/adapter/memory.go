package adapter

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-dispatch/internal/infrastructure/docstore/port"
)

// MemoryStore is an in-memory adapter satisfying port.Store with full
// live-query semantics: every mutation of a collection re-runs each live
// query on it and pushes a fresh full snapshot. Used by tests and local
// development; the deployment adapter is MongoStore.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string][]memDoc
	watchers    map[string][]*watcher
}

type memDoc struct {
	id     string
	fields map[string]any
}

// watcher is one live query. Deliveries are serialized through a pending
// queue so callbacks always observe snapshots in mutation order, and a
// callback may safely mutate the store (or cancel itself) without
// deadlocking.
type watcher struct {
	query port.Query
	fn    port.OnSnapshot

	mu         sync.Mutex
	pending    [][]port.Document
	delivering bool
	closed     bool
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]memDoc),
		watchers:    make(map[string][]*watcher),
	}
}

var _ port.Store = (*MemoryStore)(nil)

func joinPath(path []string) string { return strings.Join(path, "/") }

func (s *MemoryStore) Append(ctx context.Context, path []string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	key := joinPath(path)
	s.collections[key] = append(s.collections[key], memDoc{id: id, fields: copyFields(fields)})
	pending := s.snapshotWatchersLocked(key)
	s.mu.Unlock()

	dispatch(pending)
	return id, nil
}

func (s *MemoryStore) Put(ctx context.Context, path []string, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	key := joinPath(path)
	docs := s.collections[key]
	replaced := false
	for i := range docs {
		if docs[i].id == id {
			docs[i].fields = copyFields(fields)
			replaced = true
			break
		}
	}
	if !replaced {
		s.collections[key] = append(docs, memDoc{id: id, fields: copyFields(fields)})
	}
	pending := s.snapshotWatchersLocked(key)
	s.mu.Unlock()

	dispatch(pending)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path []string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(path) < 2 {
		return port.ErrNotFound
	}
	collection, id := joinPath(path[:len(path)-1]), path[len(path)-1]

	s.mu.Lock()
	docs := s.collections[collection]
	found := false
	for i := range docs {
		if docs[i].id == id {
			for k, v := range patch {
				docs[i].fields[k] = v
			}
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return port.ErrNotFound
	}
	pending := s.snapshotWatchersLocked(collection)
	s.mu.Unlock()

	dispatch(pending)
	return nil
}

func (s *MemoryStore) UpdateIf(ctx context.Context, path []string, patch map[string]any, when []port.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(path) < 2 {
		return port.ErrNotFound
	}
	collection, id := joinPath(path[:len(path)-1]), path[len(path)-1]

	s.mu.Lock()
	docs := s.collections[collection]
	found := false
	applied := false
	for i := range docs {
		if docs[i].id == id {
			found = true
			if matchesAll(docs[i].fields, when) {
				for k, v := range patch {
					docs[i].fields[k] = v
				}
				applied = true
			}
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return port.ErrNotFound
	}
	if !applied {
		// Filters rejected the document: nothing changed, so watchers are
		// not notified.
		s.mu.Unlock()
		return nil
	}
	pending := s.snapshotWatchersLocked(collection)
	s.mu.Unlock()

	dispatch(pending)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, path []string, q port.Query) ([]port.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runQueryLocked(joinPath(path), q), nil
}

func (s *MemoryStore) Count(ctx context.Context, path []string, filters []port.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, d := range s.collections[joinPath(path)] {
		if matchesAll(d.fields, filters) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) LiveQuery(ctx context.Context, path []string, q port.Query, onSnapshot port.OnSnapshot) (port.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &watcher{query: q, fn: onSnapshot}
	key := joinPath(path)

	s.mu.Lock()
	s.watchers[key] = append(s.watchers[key], w)
	initial := s.runQueryLocked(key, q)
	s.mu.Unlock()

	// Initial snapshot mirrors the push-based store contract: subscribers
	// always start from the current full result set.
	w.deliver(initial)

	cancel := func() {
		s.mu.Lock()
		ws := s.watchers[key]
		for i, other := range ws {
			if other == w {
				s.watchers[key] = append(ws[:i:i], ws[i+1:]...)
				break
			}
		}
		s.mu.Unlock()

		w.mu.Lock()
		w.closed = true
		w.pending = nil
		w.mu.Unlock()
	}
	return cancel, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	watchers := s.watchers
	s.watchers = make(map[string][]*watcher)
	s.collections = make(map[string][]memDoc)
	s.mu.Unlock()

	for _, ws := range watchers {
		for _, w := range ws {
			w.mu.Lock()
			w.closed = true
			w.pending = nil
			w.mu.Unlock()
		}
	}
	return nil
}

// snapshotWatchersLocked computes, under the store lock, the result set each
// watcher of the collection should receive for the mutation that just
// happened. Delivery happens after the lock is released.
type pendingDelivery struct {
	w    *watcher
	snap []port.Document
}

func (s *MemoryStore) snapshotWatchersLocked(collection string) []pendingDelivery {
	ws := s.watchers[collection]
	if len(ws) == 0 {
		return nil
	}
	pending := make([]pendingDelivery, 0, len(ws))
	for _, w := range ws {
		pending = append(pending, pendingDelivery{w: w, snap: s.runQueryLocked(collection, w.query)})
	}
	return pending
}

func dispatch(pending []pendingDelivery) {
	for _, p := range pending {
		p.w.deliver(p.snap)
	}
}

// deliver enqueues a snapshot and drains the queue unless another delivery
// is already in flight on this watcher. The queue keeps snapshot order equal
// to mutation order even when a callback mutates the store re-entrantly.
func (w *watcher) deliver(snap []port.Document) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = append(w.pending, snap)
	if w.delivering {
		w.mu.Unlock()
		return
	}
	w.delivering = true
	for len(w.pending) > 0 && !w.closed {
		next := w.pending[0]
		w.pending = w.pending[1:]
		w.mu.Unlock()
		w.fn(next)
		w.mu.Lock()
	}
	w.delivering = false
	w.mu.Unlock()
}

func (s *MemoryStore) runQueryLocked(collection string, q port.Query) []port.Document {
	var out []port.Document
	for _, d := range s.collections[collection] {
		if matchesAll(d.fields, q.Filters) {
			out = append(out, port.Document{ID: d.id, Fields: copyFields(d.fields)})
		}
	}
	if q.OrderBy != nil {
		sortDocs(out, *q.OrderBy)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchesAll(fields map[string]any, filters []port.Filter) bool {
	for _, f := range filters {
		if !matches(fields, f) {
			return false
		}
	}
	return true
}

func matches(fields map[string]any, f port.Filter) bool {
	v, ok := fields[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case port.OpEqual:
		return v == f.Value
	case port.OpArrayContains:
		switch arr := v.(type) {
		case []string:
			want, ok := f.Value.(string)
			if !ok {
				return false
			}
			for _, item := range arr {
				if item == want {
					return true
				}
			}
		case []any:
			for _, item := range arr {
				if item == f.Value {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// sortDocs orders by the given field. The sort is stable, so documents with
// equal values keep insertion (append) order.
func sortDocs(docs []port.Document, by port.OrderBy) {
	less := func(a, b any) bool {
		switch av := a.(type) {
		case time.Time:
			if bv, ok := b.(time.Time); ok {
				return av.Before(bv)
			}
		case string:
			if bv, ok := b.(string); ok {
				return av < bv
			}
		case int:
			if bv, ok := b.(int); ok {
				return av < bv
			}
		case int64:
			if bv, ok := b.(int64); ok {
				return av < bv
			}
		case float64:
			if bv, ok := b.(float64); ok {
				return av < bv
			}
		}
		return false
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i].Fields[by.Field], docs[j].Fields[by.Field]
		if by.Descending {
			return less(b, a)
		}
		return less(a, b)
	})
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go-dispatch/internal/infrastructure/docstore/port"
)

// parentField scopes sub-collection documents to their parent document.
// The adapter injects it on writes and binds it on reads, so callers only
// ever see the path-based addressing of the port.
const parentField = "_parent"

// MongoStore satisfies port.Store on top of MongoDB. Sub-collections
// (conversations/{key}/messages) map to a top-level collection scoped by
// parentField; LiveQuery is driven by change streams, re-running the query
// and pushing a full snapshot on every matching collection event.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *log.Logger
}

// NewMongoStoreFromEnv connects using the MONGO_URL environment variable and
// the optional MONGO_DB database name (default "dispatch").
func NewMongoStoreFromEnv(ctx context.Context, logger *log.Logger) (*MongoStore, error) {
	uri := strings.TrimSpace(os.Getenv("MONGO_URL"))
	if uri == "" {
		return nil, errors.New("mongo: MONGO_URL environment variable is not set")
	}
	dbName := strings.TrimSpace(os.Getenv("MONGO_DB"))
	if dbName == "" {
		dbName = "dispatch"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(dbName), logger: logger}, nil
}

var _ port.Store = (*MongoStore)(nil)

// scope resolves a collection path to a mongo collection plus the filter
// binding sub-collection documents to their parent.
func (s *MongoStore) scope(path []string) (*mongo.Collection, bson.M, error) {
	switch len(path) {
	case 1:
		return s.db.Collection(path[0]), bson.M{}, nil
	case 3:
		return s.db.Collection(path[2]), bson.M{parentField: path[1]}, nil
	default:
		return nil, nil, fmt.Errorf("mongo: unsupported collection path %q", strings.Join(path, "/"))
	}
}

func (s *MongoStore) Append(ctx context.Context, path []string, fields map[string]any) (string, error) {
	coll, bound, err := s.scope(path)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	doc := bson.M{"_id": id}
	for k, v := range fields {
		doc[k] = v
	}
	for k, v := range bound {
		doc[k] = v
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("mongo: insert: %w", err)
	}
	return id, nil
}

func (s *MongoStore) Put(ctx context.Context, path []string, id string, fields map[string]any) error {
	coll, bound, err := s.scope(path)
	if err != nil {
		return err
	}
	doc := bson.M{"_id": id}
	for k, v := range fields {
		doc[k] = v
	}
	for k, v := range bound {
		doc[k] = v
	}
	_, err = coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: put: %w", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, path []string, patch map[string]any) error {
	if len(path) < 2 {
		return port.ErrNotFound
	}
	coll, bound, err := s.scope(path[:len(path)-1])
	if err != nil {
		return err
	}
	filter := bson.M{"_id": path[len(path)-1]}
	for k, v := range bound {
		filter[k] = v
	}
	res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M(patch)})
	if err != nil {
		return fmt.Errorf("mongo: update: %w", err)
	}
	if res.MatchedCount == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (s *MongoStore) UpdateIf(ctx context.Context, path []string, patch map[string]any, when []port.Filter) error {
	if len(path) < 2 {
		return port.ErrNotFound
	}
	coll, bound, err := s.scope(path[:len(path)-1])
	if err != nil {
		return err
	}
	target := bson.M{"_id": path[len(path)-1]}
	for k, v := range bound {
		target[k] = v
	}
	filter := bson.M{}
	for k, v := range target {
		filter[k] = v
	}
	for _, f := range when {
		filter[f.Field] = f.Value
	}
	res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M(patch)})
	if err != nil {
		return fmt.Errorf("mongo: conditional update: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	// Nothing matched: distinguish a missing document from one that exists
	// but failed the filters, which is a successful no-op.
	n, err := coll.CountDocuments(ctx, target)
	if err != nil {
		return fmt.Errorf("mongo: conditional update: %w", err)
	}
	if n == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Query(ctx context.Context, path []string, q port.Query) ([]port.Document, error) {
	coll, bound, err := s.scope(path)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if q.OrderBy != nil {
		dir := 1
		if q.OrderBy.Descending {
			dir = -1
		}
		opts = opts.SetSort(bson.D{{Key: q.OrderBy.Field, Value: dir}})
	}
	if q.Limit > 0 {
		opts = opts.SetLimit(int64(q.Limit))
	}

	cur, err := coll.Find(ctx, buildFilter(bound, q.Filters), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find: %w", err)
	}
	defer cur.Close(ctx)

	var out []port.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("mongo: decode: %w", err)
		}
		out = append(out, toDocument(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: cursor: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Count(ctx context.Context, path []string, filters []port.Filter) (int, error) {
	coll, bound, err := s.scope(path)
	if err != nil {
		return 0, err
	}
	n, err := coll.CountDocuments(ctx, buildFilter(bound, filters))
	if err != nil {
		return 0, fmt.Errorf("mongo: count: %w", err)
	}
	return int(n), nil
}

// LiveQuery opens a change stream on the scoped collection and re-runs the
// query after every event, pushing full snapshots in event order. Cancel is
// idempotent; once it returns, no new callback invocation will begin.
func (s *MongoStore) LiveQuery(ctx context.Context, path []string, q port.Query, onSnapshot port.OnSnapshot) (port.CancelFunc, error) {
	coll, _, err := s.scope(path)
	if err != nil {
		return nil, err
	}

	initial, err := s.Query(ctx, path, q)
	if err != nil {
		return nil, err
	}

	streamCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := coll.Watch(streamCtx, mongo.Pipeline{})
	if err != nil {
		stop()
		return nil, fmt.Errorf("mongo: watch: %w", err)
	}

	var closed atomic.Bool
	onSnapshot(initial)

	go func() {
		defer stream.Close(context.WithoutCancel(streamCtx))
		for stream.Next(streamCtx) {
			if closed.Load() {
				return
			}
			snap, err := s.Query(streamCtx, path, q)
			if err != nil {
				if streamCtx.Err() == nil {
					s.logger.Warn("live query refresh failed", "path", strings.Join(path, "/"), "err", err)
				}
				continue
			}
			if closed.Load() {
				return
			}
			onSnapshot(snap)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			closed.Store(true)
			stop()
		})
	}
	return cancel, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func buildFilter(bound bson.M, filters []port.Filter) bson.M {
	out := bson.M{}
	for k, v := range bound {
		out[k] = v
	}
	for _, f := range filters {
		// equality against an array field matches elements in mongo, which
		// covers OpArrayContains as well
		out[f.Field] = f.Value
	}
	return out
}

// toDocument converts a decoded bson document into the port shape,
// normalizing driver types so repository decoding stays store-agnostic.
func toDocument(raw bson.M) port.Document {
	doc := port.Document{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case "_id":
			if id, ok := v.(string); ok {
				doc.ID = id
			}
		case parentField:
			// addressing detail, not caller data
		default:
			doc.Fields[k] = normalizeValue(v)
		}
	}
	return doc
}

func normalizeValue(v any) any {
	switch tv := v.(type) {
	case bson.DateTime:
		return tv.Time().UTC()
	case bson.A:
		out := make([]any, 0, len(tv))
		for _, item := range tv {
			out = append(out, normalizeValue(item))
		}
		return out
	case bson.M:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = normalizeValue(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(tv))
		for _, e := range tv {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	default:
		return v
	}
}

package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-pins/pkg/pinboard"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the collection holding every document type.
const CollectionName = "documents"

// Store implements pinboard.ContentStore on a MongoDB collection
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// Connect dials uri, verifies the connection and opens database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := New(client.Database(database).Collection(CollectionName))
	s.client = client
	return s, nil
}

// New creates a store over an existing collection.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll, now: time.Now}
}

// EnsureIndexes creates the indexes used by Fetch.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: pinboard.FieldType, Value: 1}, {Key: pinboard.FieldCreatedAt, Value: -1}}},
		{Keys: bson.D{{Key: pinboard.FieldType, Value: 1}, {Key: pinboard.FieldCategory, Value: 1}}},
		{Keys: bson.D{{Key: pinboard.FieldType, Value: 1}, {Key: pinboard.FieldAuthorID, Value: 1}}},
		{Keys: bson.D{{Key: pinboard.FieldSavedBy, Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Close disconnects a store opened with Connect.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Create inserts doc, assigning _id and _createdAt when absent.
func (s *Store) Create(ctx context.Context, doc pinboard.Document) (string, error) {
	if doc.Type() == "" {
		return "", fmt.Errorf("%w: document type is required", pinboard.ErrInvalidQuery)
	}
	stored, err := pinboard.NormalizeDocument(map[string]interface{}(doc))
	if err != nil {
		return "", err
	}
	id := stored.ID()
	if id == "" {
		id = uuid.NewString()
		stored[pinboard.FieldID] = id
	}
	if _, ok := stored[pinboard.FieldCreatedAt].(string); !ok {
		stored[pinboard.FieldCreatedAt] = pinboard.FormatTimestamp(s.now())
	}

	if _, err := s.coll.InsertOne(ctx, bson.M(stored)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("document %s already exists", id)
		}
		return "", fmt.Errorf("insert document %s: %w", id, err)
	}
	return id, nil
}

func buildFilter(q pinboard.Query) bson.D {
	and := bson.A{bson.M{pinboard.FieldType: q.Type}}
	for _, f := range q.Filters {
		switch f.Op {
		case pinboard.OpEq:
			and = append(and, bson.M{f.Field: bson.M{"$eq": f.Value}})
		case pinboard.OpNe:
			and = append(and, bson.M{f.Field: bson.M{"$ne": f.Value}})
		case pinboard.OpContains:
			and = append(and, bson.M{f.Field: bson.M{"$elemMatch": bson.M{"$eq": f.Value}}})
		}
	}
	return bson.D{{Key: "$and", Value: and}}
}

// Fetch returns the matching documents, newest first.
func (s *Store) Fetch(ctx context.Context, q pinboard.Query) ([]pinboard.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{
		{Key: pinboard.FieldCreatedAt, Value: -1},
		{Key: pinboard.FieldID, Value: -1},
	})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.coll.Find(ctx, buildFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []pinboard.Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, pinboard.Document(fromBSON(raw).(map[string]interface{})))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	return docs, nil
}

// Commit applies m as a single aggregation-pipeline update, so the ensure and
// append steps land atomically on the server.
func (s *Store) Commit(ctx context.Context, m pinboard.Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}
	pipeline, err := buildPipeline(m)
	if err != nil {
		return err
	}
	if len(pipeline) == 0 {
		return s.exists(ctx, m.ID)
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{pinboard.FieldID: m.ID}, pipeline)
	if err != nil {
		return fmt.Errorf("update document %s: %w", m.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("document %s: %w", m.ID, pinboard.ErrNotFound)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, id string) error {
	err := s.coll.FindOne(ctx, bson.M{pinboard.FieldID: id}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("document %s: %w", id, pinboard.ErrNotFound)
	}
	return err
}

func buildPipeline(m pinboard.Mutation) (mongo.Pipeline, error) {
	var pipeline mongo.Pipeline

	for _, op := range m.Ensure {
		def, err := pinboard.Normalize(op.Default)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, bson.D{{Key: "$set", Value: bson.M{
			op.Path: bson.M{"$ifNull": bson.A{"$" + op.Path, bson.M{"$literal": def}}},
		}}})
	}

	for _, op := range m.Appends {
		current := bson.M{"$ifNull": bson.A{"$" + op.Path, bson.A{}}}
		parts := bson.A{current}
		for _, entry := range op.Entries {
			n, err := pinboard.Normalize(entry)
			if err != nil {
				return nil, err
			}
			literal := bson.A{bson.M{"$literal": n}}
			if !op.Unique {
				parts = append(parts, literal)
				continue
			}
			parts = append(parts, bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{bson.M{"$literal": uniqueKey(n, op.KeyField)}, existingKeys(op)}},
				bson.A{},
				literal,
			}})
		}
		pipeline = append(pipeline, bson.D{{Key: "$set", Value: bson.M{
			op.Path: bson.M{"$concatArrays": parts},
		}}})
	}
	return pipeline, nil
}

// existingKeys is the expression listing the identities already in op.Path.
func existingKeys(op pinboard.AppendOp) interface{} {
	if op.KeyField == "" {
		return bson.M{"$ifNull": bson.A{"$" + op.Path, bson.A{}}}
	}
	return bson.M{"$map": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$" + op.Path, bson.A{}}},
		"as":    "e",
		"in":    "$$e." + op.KeyField,
	}}
}

func uniqueKey(entry interface{}, keyField string) interface{} {
	if keyField == "" {
		return entry
	}
	if m, ok := entry.(map[string]interface{}); ok {
		return m[keyField]
	}
	return nil
}

// fromBSON converts decoded BSON values into the generic JSON shapes used by
// pinboard.Document.
func fromBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = fromBSON(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = fromBSON(val)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = fromBSON(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = fromBSON(val)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return pinboard.FormatTimestamp(t.Time())
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}

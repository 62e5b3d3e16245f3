package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection is the collection analyses are stored in.
const MongoCollection = "analysis_results"

// mongoRecord is the stored document. Analysis data is kept as its JSON text
// so numbers and key order survive unchanged.
type mongoRecord struct {
	ProjectID string    `bson:"project_id"`
	UserID    string    `bson:"user_id"`
	Kind      string    `bson:"kind"`
	Status    string    `bson:"status"`
	RunID     string    `bson:"run_id"`
	Version   int64     `bson:"version"`
	Data      string    `bson:"analysis_data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (m mongoRecord) record() Record {
	return Record{
		ProjectID: m.ProjectID,
		UserID:    m.UserID,
		Kind:      m.Kind,
		Status:    m.Status,
		RunID:     m.RunID,
		Version:   m.Version,
		Data:      []byte(m.Data),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// Mongo stores analyses in a MongoDB collection keyed by project and user.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to uri and uses the analysis collection of database.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty connection uri")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	m := NewMongo(client.Database(database).Collection(MongoCollection))
	m.client = client

	_, err = m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: create index: %w", err)
	}
	return m, nil
}

// NewMongo wraps an existing collection. Close does not disconnect its client.
func NewMongo(coll *mongo.Collection) *Mongo {
	return &Mongo{coll: coll}
}

// Upsert implements Store.
func (m *Mongo) Upsert(ctx context.Context, key Key, e Entry) (Record, error) {
	if err := key.Validate(); err != nil {
		return Record{}, err
	}
	if err := e.validate(); err != nil {
		return Record{}, err
	}

	filter := bson.M{"project_id": key.ProjectID, "user_id": key.UserID}
	update := bson.M{
		"$set": bson.M{
			"kind":          e.Kind,
			"status":        e.Status,
			"run_id":        e.RunID,
			"analysis_data": string(e.Data),
			"updated_at":    nowUTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc mongoRecord
	if err := m.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return Record{}, fmt.Errorf("mongo: upsert %s: %w", key, err)
	}
	return doc.record(), nil
}

// Get implements Store.
func (m *Mongo) Get(ctx context.Context, key Key) (Record, error) {
	if err := key.Validate(); err != nil {
		return Record{}, err
	}

	var doc mongoRecord
	err := m.coll.FindOne(ctx, bson.M{"project_id": key.ProjectID, "user_id": key.UserID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("mongo: get %s: %w", key, err)
	}
	return doc.record(), nil
}

// Close disconnects the client opened by OpenMongo.
func (m *Mongo) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

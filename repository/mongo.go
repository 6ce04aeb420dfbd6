package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rmgsl/mapa-od/internal/survey"
)

// MongoSource reads trip documents from a collection. Documents use the
// snake_case attribute names as fields; an optional "dataset" field selects
// one survey out of a shared collection.
type MongoSource struct {
	id       string
	location string
	client   *mongo.Client
	coll     *mongo.Collection
	dataset  string
}

// NewMongoSource connects to uri and reads db.coll
func NewMongoSource(ctx context.Context, id, uri, db, coll, dataset string) (*MongoSource, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoSource{
		id:       id,
		location: fmt.Sprintf("%s#%s.%s", redact(uri), db, coll),
		client:   client,
		coll:     client.Database(db).Collection(coll),
		dataset:  dataset,
	}, nil
}

func (s *MongoSource) ID() string       { return s.id }
func (s *MongoSource) Location() string { return s.location }

// Close disconnects the client
func (s *MongoSource) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoSource) filter() bson.M {
	if s.dataset == "" {
		return bson.M{}
	}
	return bson.M{"dataset": s.dataset}
}

// Load reads every matching document
func (s *MongoSource) Load(ctx context.Context) (*survey.Table, error) {
	cursor, err := s.coll.Find(ctx, s.filter())
	if err != nil {
		return nil, &survey.LoadError{Source: s.id, Err: fmt.Errorf("failed to query trips: %w", err)}
	}
	defer cursor.Close(ctx)

	var records []survey.TripRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, &survey.LoadError{Source: s.id, Err: fmt.Errorf("failed to decode trips: %w", err)}
	}
	for i := range records {
		for _, attr := range survey.AllAttributes() {
			records[i].Set(attr, survey.CleanName(records[i].Value(attr)))
		}
	}

	log.Infof("Loaded %d trips from mongo collection %s", len(records), s.coll.Name())
	return &survey.Table{
		SourceID:   s.id,
		SnapshotID: uuid.New().String(),
		LoadedAt:   time.Now().UTC(),
		Attributes: presentAttributes(records),
		Records:    records,
	}, nil
}

// InsertTrips writes records as documents tagged with dataset, replacing
// any documents already stored under that dataset
func (s *MongoSource) InsertTrips(ctx context.Context, dataset string, records []survey.TripRecord) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{"dataset": dataset}); err != nil {
		return fmt.Errorf("failed to clear dataset %s: %w", dataset, err)
	}
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, len(records))
	for i, r := range records {
		doc, err := bson.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode trip %d: %w", i+1, err)
		}
		var m bson.M
		if err := bson.Unmarshal(doc, &m); err != nil {
			return fmt.Errorf("failed to encode trip %d: %w", i+1, err)
		}
		m["dataset"] = dataset
		docs[i] = m
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert trips: %w", err)
	}
	return nil
}

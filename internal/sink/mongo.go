package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/ifclca/ifcqto/internal/record"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo inserts records as documents of the building_elements collection.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri).SetMaxPoolSize(100))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Mongo{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

func (m *Mongo) InsertMany(ctx context.Context, records []record.ElementRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i, r := range records {
		docs[i] = mongoDocument(r)
	}
	res, err := m.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		inserted := 0
		if res != nil {
			inserted = len(res.InsertedIDs)
		}
		return fmt.Errorf("insert %d documents (%d acknowledged): %w", len(docs), inserted, err)
	}
	return nil
}

// NewID returns a hex ObjectId so component ids survive as ObjectIds.
func (m *Mongo) NewID() string { return primitive.NewObjectID().Hex() }

// mongoDocument stores materialId as an ObjectId. Ids that are not ObjectId
// hex get a fresh ObjectId.
func mongoDocument(r record.ElementRecord) bson.M {
	doc := bson.M(r.Document())
	mats, _ := doc["materials_info"].([]any)
	for _, raw := range mats {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["materialId"].(string)
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			oid = primitive.NewObjectID()
		}
		m["materialId"] = oid
	}
	return doc
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

var _ Sink = (*Mongo)(nil)

package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	converter "github.com/malusev998/currency-converter"
)

type mongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStorage connects to the deployment in config and archives into
// config.Database / config.Collection.
func NewMongoStorage(ctx context.Context, config MongoDBConfig) (converter.Storage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.ConnectionString))

	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	st := mongoStorage{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}

	if config.Migrate {
		if err := st.Migrate(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("migrating mongodb collection %s: %w", config.Collection, err)
		}
	}

	return st, nil
}

// NewMongoCollectionStorage archives into an existing collection. Close does not
// disconnect the collection's client.
func NewMongoCollectionStorage(collection *mongo.Collection) converter.Storage {
	return mongoStorage{collection: collection}
}

func (m mongoStorage) GetStorageProviderName() string {
	return string(MongoDB)
}

func rateDocument(rate converter.Rate) (bson.M, error) {
	value, err := primitive.ParseDecimal128(rate.Rate.String())

	if err != nil {
		return nil, fmt.Errorf("converting rate %s: %w", rate.Rate, err)
	}

	return bson.M{
		"currency":  converter.NewPair(rate.From, rate.To).String(),
		"provider":  rate.Provider,
		"rate":      value,
		"createdAt": rate.CreatedAt,
	}, nil
}

func (m mongoStorage) Store(ctx context.Context, rates []converter.Rate) ([]converter.RateWithID, error) {
	if len(rates) == 0 {
		return []converter.RateWithID{}, nil
	}

	rates = append([]converter.Rate(nil), rates...)
	documents := make([]interface{}, 0, len(rates))

	for i := range rates {
		if rates[i].CreatedAt.IsZero() {
			rates[i].CreatedAt = time.Now()
		}

		document, err := rateDocument(rates[i])

		if err != nil {
			return nil, err
		}

		documents = append(documents, document)
	}

	result, err := m.collection.InsertMany(ctx, documents)

	if err != nil {
		return nil, err
	}

	stored := make([]converter.RateWithID, 0, len(rates))

	for i, id := range result.InsertedIDs {
		stored = append(stored, converter.RateWithID{Rate: rates[i], ID: id})
	}

	return stored, nil
}

func (m mongoStorage) Migrate(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "currency", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	})

	return err
}

func (m mongoStorage) Drop(ctx context.Context) error {
	return m.collection.Drop(ctx)
}

func (m mongoStorage) Close() error {
	if m.client == nil {
		return nil
	}

	return m.client.Disconnect(context.Background())
}

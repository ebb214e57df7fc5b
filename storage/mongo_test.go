package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	converter "github.com/malusev998/currency-converter"
)

func TestRateDocument(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)
	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	document, err := rateDocument(converter.Rate{
		From:      converter.EUR,
		To:        converter.USD,
		Provider:  "EVP",
		Rate:      decimal.RequireFromString("1.0857"),
		CreatedAt: createdAt,
	})

	asserts.Nil(err)
	asserts.Equal("EUR_USD", document["currency"])
	asserts.Equal("EVP", document["provider"])
	asserts.Equal(createdAt, document["createdAt"])
	asserts.IsType(primitive.Decimal128{}, document["rate"])
	asserts.Equal("1.0857", document["rate"].(primitive.Decimal128).String())
}

func TestStoreInMongo(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI is not set")
	}

	t.Parallel()
	ctx := context.Background()
	asserts := require.New(t)

	st, err := NewMongoStorage(ctx, MongoDBConfig{
		BaseConfig:       BaseConfig{Migrate: true},
		ConnectionString: uri,
		Database:         "currency_converter_store",
		Collection:       "rates",
	})
	asserts.Nil(err)
	defer st.Close()
	defer st.Drop(ctx)

	rates, err := st.Store(ctx, []converter.Rate{
		{From: converter.EUR, To: converter.USD, Provider: "TestProvider", Rate: decimal.RequireFromString("0.8")},
	})

	asserts.Nil(err)
	asserts.Len(rates, 1)
	asserts.NotNil(rates[0].ID)
	asserts.Equal(converter.EUR, rates[0].From)
	asserts.Equal("TestProvider", rates[0].Provider)
	asserts.False(rates[0].CreatedAt.IsZero())
}

package converter

import "context"

type Storage interface {
	Store(ctx context.Context, rates []Rate) ([]RateWithID, error)
	GetStorageProviderName() string
	Migrate(ctx context.Context) error
	Drop(ctx context.Context) error
	Close() error
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	converter "github.com/malusev998/currency-converter"
)

type multiStorage []converter.Storage

// NewMultiStorage archives every rate into each of storages. A failing storage
// does not stop the others; their errors are joined.
func NewMultiStorage(storages ...converter.Storage) converter.Storage {
	return multiStorage(storages)
}

func (m multiStorage) GetStorageProviderName() string {
	names := make([]string, 0, len(m))

	for _, st := range m {
		names = append(names, st.GetStorageProviderName())
	}

	return strings.Join(names, ",")
}

func (m multiStorage) Store(ctx context.Context, rates []converter.Rate) ([]converter.RateWithID, error) {
	var (
		stored []converter.RateWithID
		errs   []error
	)

	for _, st := range m {
		result, err := st.Store(ctx, rates)

		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.GetStorageProviderName(), err))
			continue
		}

		stored = append(stored, result...)
	}

	return stored, errors.Join(errs...)
}

func (m multiStorage) each(fn func(converter.Storage) error) error {
	errs := make([]error, 0, len(m))

	for _, st := range m {
		if err := fn(st); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.GetStorageProviderName(), err))
		}
	}

	return errors.Join(errs...)
}

func (m multiStorage) Migrate(ctx context.Context) error {
	return m.each(func(st converter.Storage) error { return st.Migrate(ctx) })
}

func (m multiStorage) Drop(ctx context.Context) error {
	return m.each(func(st converter.Storage) error { return st.Drop(ctx) })
}

func (m multiStorage) Close() error {
	return m.each(func(st converter.Storage) error { return st.Close() })
}

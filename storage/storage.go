package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	converter "github.com/malusev998/currency-converter"
)

type (
	Provider   string
	BaseConfig struct {
		Migrate bool
	}
	MySQLConfig struct {
		BaseConfig
		ConnectionString string
		TableName        string
	}
	MongoDBConfig struct {
		BaseConfig
		ConnectionString string
		Database         string
		Collection       string
	}
)

const (
	MySQL   Provider = "mysql"
	MongoDB Provider = "mongodb"

	MySQLTimeFormat = "2006-01-02 15:04:05"
)

var (
	ErrStorageNotFound  = errors.New("storage is not found")
	ErrInvalidConfig    = errors.New("invalid storage config")
	ErrInvalidTableName = errors.New("invalid table name")

	tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)
)

func ConvertToProvidersFromStringSlice(strings []string) ([]Provider, error) {
	providers := make([]Provider, 0, len(strings))

	for _, str := range strings {
		provider, err := ConvertToProviderFromString(str)
		if err != nil {
			return nil, err
		}

		providers = append(providers, provider)
	}

	return providers, nil
}

func ConvertToProviderFromString(str string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "mysql":
		return MySQL, nil
	case "mongodb", "mongo":
		return MongoDB, nil
	}

	return "", fmt.Errorf("value %s is not valid Provider", str)
}

// NewStorage connects the archive for provider. config must be the matching
// MySQLConfig or MongoDBConfig.
func NewStorage(ctx context.Context, provider Provider, config interface{}) (converter.Storage, error) {
	switch provider {
	case MySQL:
		c, ok := config.(MySQLConfig)
		if !ok {
			return nil, fmt.Errorf("%w: expected MySQLConfig, got %T", ErrInvalidConfig, config)
		}

		return NewMySQLStorage(ctx, c)
	case MongoDB:
		c, ok := config.(MongoDBConfig)
		if !ok {
			return nil, fmt.Errorf("%w: expected MongoDBConfig, got %T", ErrInvalidConfig, config)
		}

		return NewMongoStorage(ctx, c)
	}

	return nil, ErrStorageNotFound
}

func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}

	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	converter "github.com/malusev998/currency-converter"
	"github.com/malusev998/currency-converter/cache"
	"github.com/malusev998/currency-converter/cli/cmd"
	"github.com/malusev998/currency-converter/fetchers"
	"github.com/malusev998/currency-converter/logging"
	"github.com/malusev998/currency-converter/metrics"
	"github.com/malusev998/currency-converter/services"
	"github.com/malusev998/currency-converter/storage"
)

func storageConfig(config *Config, provider storage.Provider) interface{} {
	base := storage.BaseConfig{Migrate: config.Migrate}

	if provider == storage.MySQL {
		return storage.MySQLConfig{
			BaseConfig:       base,
			ConnectionString: getMysqlDSN(config.Databases.MySQL),
			TableName:        config.Databases.MySQL.Table,
		}
	}

	return storage.MongoDBConfig{
		BaseConfig:       base,
		ConnectionString: config.Databases.MongoDB.URI,
		Database:         config.Databases.MongoDB.DB,
		Collection:       config.Databases.MongoDB.Collection,
	}
}

// createArchive connects every configured storage. It returns nil when no
// storage is configured.
func createArchive(ctx context.Context, config *Config) (converter.Storage, error) {
	providers, err := storage.ConvertToProvidersFromStringSlice(config.Storage)

	if err != nil {
		return nil, err
	}

	if len(providers) == 0 {
		return nil, nil
	}

	storages := make([]converter.Storage, 0, len(providers))

	for _, provider := range providers {
		st, err := storage.NewStorage(ctx, provider, storageConfig(config, provider))

		if err != nil {
			for _, opened := range storages {
				_ = opened.Close()
			}

			return nil, fmt.Errorf("storage %s: %w", provider, err)
		}

		storages = append(storages, st)
	}

	if len(storages) == 1 {
		return storages[0], nil
	}

	return storage.NewMultiStorage(storages...), nil
}

func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

func setup(ctx context.Context, options cmd.SetupOptions) (*cmd.Runtime, error) {
	config, err := loadConfig(options.ConfigFile)

	if err != nil {
		return nil, err
	}

	if options.Debug {
		config.Log.Level = "debug"
		config.Fetcher.Logging = true
	}

	logger := logging.New(logging.Config{Level: config.Log.Level, Pretty: config.Log.Pretty}, os.Stderr)
	registry := newRegistry()
	m := metrics.New(registry)

	fetcher := fetchers.NewEVPFetcher(fetchers.EVPConfig{
		BaseConfig: fetchers.BaseConfig{
			URL:    config.Fetcher.URL,
			Client: &http.Client{Timeout: config.Fetcher.Timeout},
		},
		Endpoint:       config.Fetcher.Endpoint,
		LoggingEnabled: config.Fetcher.Logging,
		Logger:         logger,
		Metrics:        m,
	})

	archive, err := createArchive(ctx, config)

	if err != nil {
		return nil, err
	}

	from, _ := converter.ConvertToCurrencyFromString(config.Converter.From)
	to, _ := converter.ConvertToCurrencyFromString(config.Converter.To)
	rateCache := cache.New(cache.WithTTL(config.Converter.CacheTTL))

	base := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(m),
		services.WithDebounce(config.Converter.Debounce),
		services.WithRefreshInterval(config.Converter.Refresh),
	}

	if archive != nil {
		base = append(base, services.WithArchive(archive))
	}

	logger.Debug().
		Str("url", config.Fetcher.URL).
		Str("pair", converter.NewPair(from, to).String()).
		Strs("storage", config.Storage).
		Msg("Converter configured")

	return &cmd.Runtime{
		Logger:   logger,
		Registry: registry,
		Pair:     converter.NewPair(from, to),
		NewController: func(options ...services.Option) *services.ConversionController {
			return services.NewConversionController(fetcher, rateCache, append(append([]services.Option{}, base...), options...)...)
		},
		Close: func() error {
			if archive == nil {
				return nil
			}

			return archive.Close()
		},
	}, nil
}

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"

	converter "github.com/malusev998/currency-converter"
	"github.com/malusev998/currency-converter/cache"
	"github.com/malusev998/currency-converter/fetchers"
	"github.com/malusev998/currency-converter/services"
)

const envPrefix = "CURRENCY_CONVERTER"

type (
	FetcherConfig struct {
		URL      string        `mapstructure:"url" validate:"required,url"`
		Endpoint string        `mapstructure:"endpoint" validate:"required"`
		Logging  bool          `mapstructure:"logging"`
		Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
	}

	ConverterConfig struct {
		From     string        `mapstructure:"from" validate:"required,currency"`
		To       string        `mapstructure:"to" validate:"required,currency"`
		Debounce time.Duration `mapstructure:"debounce" validate:"gt=0"`
		Refresh  time.Duration `mapstructure:"refresh" validate:"gte=1s"`
		CacheTTL time.Duration `mapstructure:"cachettl" validate:"gt=0"`
	}

	LogConfig struct {
		Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Pretty bool   `mapstructure:"pretty"`
	}

	MySQLConfig struct {
		User     string `mapstructure:"user" validate:"required"`
		Password string `mapstructure:"password"`
		Addr     string `mapstructure:"addr" validate:"required,hostname_port"`
		DB       string `mapstructure:"db" validate:"required"`
		Table    string `mapstructure:"table" validate:"required"`
	}

	MongoDBConfig struct {
		URI        string `mapstructure:"uri" validate:"required,uri"`
		DB         string `mapstructure:"db" validate:"required"`
		Collection string `mapstructure:"collection" validate:"required"`
	}

	DatabasesConfig struct {
		MySQL   MySQLConfig   `mapstructure:"mysql"`
		MongoDB MongoDBConfig `mapstructure:"mongodb"`
	}

	Config struct {
		Fetcher   FetcherConfig   `mapstructure:"fetcher"`
		Converter ConverterConfig `mapstructure:"converter"`
		Log       LogConfig       `mapstructure:"log"`
		Storage   []string        `mapstructure:"storage" validate:"dive,oneof=mysql mongodb mongo"`
		Databases DatabasesConfig `mapstructure:"databases" validate:"-"`
		Migrate   bool            `mapstructure:"migrate"`
	}
)

func newValidator() *validator.Validate {
	validate := validator.New()

	_ = validate.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		_, err := converter.ConvertToCurrencyFromString(fl.Field().String())
		return err == nil
	})

	return validate
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("fetcher.url", fetchers.EVPBaseURL)
	v.SetDefault("fetcher.endpoint", fetchers.EVPEndpoint)
	v.SetDefault("fetcher.logging", false)
	v.SetDefault("fetcher.timeout", 10*time.Second)
	v.SetDefault("converter.from", string(converter.EUR))
	v.SetDefault("converter.to", string(converter.USD))
	v.SetDefault("converter.debounce", services.DefaultDebounce)
	v.SetDefault("converter.refresh", services.DefaultRefreshInterval)
	v.SetDefault("converter.cachettl", cache.DefaultTTL)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("storage", []string{})
	v.SetDefault("databases.mysql.user", "")
	v.SetDefault("databases.mysql.password", "")
	v.SetDefault("databases.mysql.addr", "localhost:3306")
	v.SetDefault("databases.mysql.db", "")
	v.SetDefault("databases.mysql.table", "exchange_rates")
	v.SetDefault("databases.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("databases.mongodb.db", "currency_converter")
	v.SetDefault("databases.mongodb.collection", "exchange_rates")
	v.SetDefault("migrate", false)
}

// loadConfig reads configFile if it exists, applies CURRENCY_CONVERTER_* overrides
// and validates the result. Databases are only validated when they are enabled.
func loadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		absolutePath, err := filepath.Abs(configFile)
		if err != nil {
			return nil, err
		}

		v.SetConfigFile(absolutePath)

		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error while reading in the config file: %w", err)
		}
	}

	var config Config

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error while decoding config: %w", err)
	}

	validate := newValidator()

	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	for _, st := range config.Storage {
		var err error

		switch st {
		case "mysql":
			err = validate.Struct(&config.Databases.MySQL)
		default:
			err = validate.Struct(&config.Databases.MongoDB)
		}

		if err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", st, err)
		}
	}

	return &config, nil
}

func getMysqlDSN(config MySQLConfig) string {
	mysqlDriverConfig := mysql.NewConfig()
	mysqlDriverConfig.User = config.User
	mysqlDriverConfig.Passwd = config.Password
	mysqlDriverConfig.Addr = config.Addr
	mysqlDriverConfig.Net = "tcp"
	mysqlDriverConfig.DBName = config.DB
	mysqlDriverConfig.ParseTime = true

	return mysqlDriverConfig.FormatDSN()
}

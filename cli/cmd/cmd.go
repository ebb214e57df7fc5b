package cmd

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	converter "github.com/malusev998/currency-converter"
	"github.com/malusev998/currency-converter/services"
)

var ErrNotConfigured = errors.New("converter runtime is not configured")

type (
	SetupOptions struct {
		ConfigFile string
		Debug      bool
	}

	// Runtime is everything the commands need, built once the flags are parsed.
	Runtime struct {
		Logger        zerolog.Logger
		Registry      *prometheus.Registry
		Pair          converter.Pair
		NewController func(options ...services.Option) *services.ConversionController
		Close         func() error
	}

	Config struct {
		Ctx   context.Context
		Setup func(ctx context.Context, options SetupOptions) (*Runtime, error)

		runtime *Runtime
	}
)

func (c *Config) Runtime() (*Runtime, error) {
	if c.runtime == nil {
		return nil, ErrNotConfigured
	}

	return c.runtime, nil
}

func newRootCommand(config *Config) *cobra.Command {
	var options SetupOptions

	rootCmd := &cobra.Command{
		Use:          "currency-converter",
		Short:        "Currency converter with live exchange rates",
		Version:      "v1.0.0",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if config.Setup == nil {
				return ErrNotConfigured
			}

			runtime, err := config.Setup(cmd.Context(), options)

			if err != nil {
				return err
			}

			config.runtime = runtime

			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVar(&options.Debug, "debug", false, "Log every exchange rate request")
	rootCmd.PersistentFlags().StringVar(&options.ConfigFile, "config", "./config.yml", "Path to config file")

	rootCmd.AddCommand(convert(config), watch(config), currencies())

	return rootCmd
}

// close releases the runtime built by Setup. Cobra skips post-run hooks when a
// command fails, so Execute closes explicitly.
func (c *Config) close() error {
	if c.runtime == nil || c.runtime.Close == nil {
		return nil
	}

	runtime := c.runtime
	c.runtime = nil

	return runtime.Close()
}

func Execute(config *Config) error {
	ctx := config.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	err := newRootCommand(config).ExecuteContext(ctx)

	if closeErr := config.close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	converter "github.com/malusev998/currency-converter"
	"github.com/malusev998/currency-converter/services"
)

const watchHelp = `Commands:
  <amount>     convert amount (',' or '.' as decimal separator)
  from <CODE>  change source currency
  to <CODE>    change target currency
  swap         swap source and target
  refresh      fetch the exchange rate again
  history      list recent conversions
  quit         exit`

var errQuit = errors.New("quit")

// lockedWriter lets the state printer and the command loop share one terminal.
// Callers write whole lines so a line is never split between them.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Write(p)
}

// lockWriters guards out and errOut with one shared mutex.
func lockWriters(out, errOut io.Writer) (io.Writer, io.Writer) {
	mu := &sync.Mutex{}

	return lockedWriter{mu: mu, w: out}, lockedWriter{mu: mu, w: errOut}
}

// MetricsRouter serves the prometheus registry on /metrics.
func MetricsRouter(registry *prometheus.Registry) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return router
}

func serveMetrics(addr string, registry *prometheus.Registry, errOut io.Writer) func() {
	server := &http.Server{
		Addr:              addr,
		Handler:           MetricsRouter(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_, _ = fmt.Fprint(errOut, failure.Sprintf("metrics server: %v\n", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

// handleLine applies one watch command to the controller.
func handleLine(line string, controller *services.ConversionController, out io.Writer) error {
	fields := strings.Fields(line)

	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return errQuit
	case "help":
		_, _ = fmt.Fprintln(out, watchHelp)
	case "swap":
		controller.SwapCurrencies()
	case "refresh":
		controller.Refresh()
	case "history":
		printHistory(out, controller.State().History)
	case "from", "to":
		if len(fields) != 2 {
			return fmt.Errorf("usage: %s <CODE>", fields[0])
		}

		cur, err := converter.ConvertToCurrencyFromString(fields[1])
		if err != nil {
			return err
		}

		if strings.EqualFold(fields[0], "from") {
			return controller.SetFromCurrency(cur)
		}

		return controller.SetToCurrency(cur)
	default:
		controller.SetInputAmount(strings.TrimSpace(line))
	}

	return nil
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines
}

func watch(config *Config) *cobra.Command {
	var from, to, metricsAddr string

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Interactive converter that refreshes the exchange rate periodically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := config.Runtime()
			if err != nil {
				return err
			}

			pair, err := pairFlags(runtime.Pair, from, to)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			out, errOut := lockWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())

			if metricsAddr != "" && runtime.Registry != nil {
				stop := serveMetrics(metricsAddr, runtime.Registry, errOut)
				defer stop()
				runtime.Logger.Info().Str("addr", metricsAddr).Msg("Serving metrics")
			}

			controller := runtime.NewController(services.WithCurrencies(pair.From, pair.To))
			defer controller.Close()

			updates, unsubscribe := controller.Subscribe()
			defer unsubscribe()

			printed := make(chan struct{})
			go func() {
				defer close(printed)
				last := ""

				for state := range updates {
					if line := stateLine(state); line != last {
						_, _ = fmt.Fprintln(out, line)
						last = line
					}
				}
			}()

			if err := controller.Start(ctx); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(out, muted.Sprint("Type an amount to convert, 'help' for commands"))

			lines := readLines(ctx, cmd.InOrStdin())

		loop:
			for {
				select {
				case <-ctx.Done():
					break loop
				case line, ok := <-lines:
					if !ok {
						break loop
					}

					if err := handleLine(line, controller, out); err != nil {
						if errors.Is(err, errQuit) {
							break loop
						}

						_, _ = fmt.Fprintln(errOut, failure.Sprint(err))
					}
				}
			}

			_ = controller.Close()
			<-printed

			return nil
		},
	}

	watchCmd.Flags().StringVarP(&from, "from", "f", "", "Source currency (defaults to converter.from)")
	watchCmd.Flags().StringVarP(&to, "to", "t", "", "Target currency (defaults to converter.to)")
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090")

	return watchCmd
}

package fetchers_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	converter "github.com/malusev998/currency-converter"
	"github.com/malusev998/currency-converter/fetchers"
	"github.com/malusev998/currency-converter/metrics"
)

type (
	httpHandler struct {
		mu    sync.Mutex
		paths []string
	}

	blockingHandler struct {
		started chan struct{}
		release chan struct{}
	}
)

func (h *httpHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	h.mu.Lock()
	h.paths = append(h.paths, request.URL.Path)
	h.mu.Unlock()

	switch request.URL.Path {
	case "/exchange/1.0-EUR/USD/latest":
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte(`{"amount": "1.0857", "currency": "USD"}`))
	case "/exchange/1.0-EUR/GBP/latest":
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte(`{"amount": "abc", "currency": "GBP"}`))
	case "/exchange/1.0-EUR/JPY/latest":
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte(`{"amount": "161.2", "currency": "XXX"}`))
	case "/exchange/1.0-EUR/CAD/latest":
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte(`not json`))
	case "/exchange/1.0-EUR/AUD/latest":
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte(`{"amount": "0", "currency": "AUD"}`))
	case "/exchange/1.0-EUR/CNY/latest":
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte(`{"amount": "1e20000000", "currency": "CNY"}`))
	case "/exchange/1.0-EUR/CHF/latest":
		writer.WriteHeader(http.StatusInternalServerError)
	default:
		writer.WriteHeader(http.StatusBadRequest)
		_, _ = writer.Write([]byte(`{"error": "unsupported"}`))
	}
}

func (h *blockingHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.URL.Path == "/exchange/1.0-EUR/USD/latest" {
		h.started <- struct{}{}
		select {
		case <-h.release:
		case <-request.Context().Done():
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte(`{"amount": "9.99", "currency": "USD"}`))
		return
	}

	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte(`{"amount": "0.8567", "currency": "GBP"}`))
}

var one = decimal.NewFromInt(1)

func newFetcher(url string, m *metrics.Metrics) *fetchers.EVPFetcher {
	return fetchers.NewEVPFetcher(fetchers.EVPConfig{
		BaseConfig: fetchers.BaseConfig{URL: url},
		Metrics:    m,
	})
}

func TestEVPFetcher_RequestURL(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)

	fetcher := fetchers.NewEVPFetcher(fetchers.EVPConfig{})
	asserts.Equal(
		"http://api.evp.lt/currency/commercial/exchange/1.0-EUR/USD/latest",
		fetcher.RequestURL(one, converter.EUR, converter.USD),
	)

	fetcher = fetchers.NewEVPFetcher(fetchers.EVPConfig{
		BaseConfig: fetchers.BaseConfig{URL: "http://localhost:8080/api/"},
		Endpoint:   "/rates/",
	})
	asserts.Equal(
		"http://localhost:8080/api/rates/100.0-GBP/JPY/latest",
		fetcher.RequestURL(decimal.NewFromInt(100), converter.GBP, converter.JPY),
	)
	asserts.Equal(
		"http://localhost:8080/api/rates/1.5-CHF/CNY/latest",
		fetcher.RequestURL(decimal.RequireFromString("1.50"), converter.CHF, converter.CNY),
	)
}

func TestEVPFetcher_FetchRate(t *testing.T) {
	t.Parallel()
	handler := &httpHandler{}
	server := httptest.NewServer(handler)
	defer server.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	fetcher := newFetcher(server.URL, m)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		asserts := require.New(t)
		rate, err := fetcher.FetchRate(ctx, one, converter.EUR, converter.USD)

		asserts.Nil(err)
		asserts.Equal("1.0857", rate.String())
	})

	t.Run("Amount_Not_Numeric", func(t *testing.T) {
		asserts := require.New(t)
		_, err := fetcher.FetchRate(ctx, one, converter.EUR, converter.GBP)

		var decodingErr *fetchers.DecodingError
		asserts.True(errors.Is(err, fetchers.ErrDecoding))
		asserts.True(errors.As(err, &decodingErr))
		asserts.Contains(decodingErr.Detail, "'abc'")
	})

	t.Run("Unknown_Currency", func(t *testing.T) {
		asserts := require.New(t)
		_, err := fetcher.FetchRate(ctx, one, converter.EUR, converter.JPY)

		asserts.True(errors.Is(err, fetchers.ErrDecoding))
		asserts.Contains(err.Error(), "XXX")
	})

	t.Run("Malformed_Body", func(t *testing.T) {
		asserts := require.New(t)
		_, err := fetcher.FetchRate(ctx, one, converter.EUR, converter.CAD)

		asserts.True(errors.Is(err, fetchers.ErrDecoding))
	})

	t.Run("Non_Positive_Amount", func(t *testing.T) {
		asserts := require.New(t)
		_, err := fetcher.FetchRate(ctx, one, converter.EUR, converter.AUD)

		asserts.True(errors.Is(err, fetchers.ErrDecoding))
	})

	t.Run("Amount_Out_Of_Range", func(t *testing.T) {
		asserts := require.New(t)
		start := time.Now()
		_, err := fetcher.FetchRate(ctx, one, converter.EUR, converter.CNY)

		var decodingErr *fetchers.DecodingError
		asserts.True(errors.As(err, &decodingErr))
		asserts.Contains(decodingErr.Detail, "out of range")
		asserts.Less(time.Since(start), 5*time.Second)
	})

	t.Run("Server_Error", func(t *testing.T) {
		asserts := require.New(t)
		_, err := fetcher.FetchRate(ctx, one, converter.EUR, converter.CHF)

		var networkErr *fetchers.NetworkError
		asserts.True(errors.Is(err, fetchers.ErrNetwork))
		asserts.True(errors.Is(err, fetchers.ErrServer))
		asserts.True(errors.As(err, &networkErr))
		asserts.Equal(http.StatusInternalServerError, networkErr.StatusCode)
	})

	t.Run("Client_Error", func(t *testing.T) {
		asserts := require.New(t)
		_, err := fetcher.FetchRate(ctx, one, converter.USD, converter.EUR)

		var networkErr *fetchers.NetworkError
		asserts.True(errors.As(err, &networkErr))
		asserts.True(errors.Is(err, fetchers.ErrClient))
		asserts.Equal(http.StatusBadRequest, networkErr.StatusCode)
	})

	t.Run("Metrics", func(t *testing.T) {
		asserts := require.New(t)

		asserts.GreaterOrEqual(testutil.ToFloat64(m.Fetches.WithLabelValues(metrics.FetchSuccess)), float64(1))
		asserts.GreaterOrEqual(testutil.ToFloat64(m.Fetches.WithLabelValues(metrics.FetchDecoding)), float64(4))
		asserts.GreaterOrEqual(testutil.ToFloat64(m.Fetches.WithLabelValues(metrics.FetchNetwork)), float64(2))
	})
}

func TestEVPFetcher_TransportFailure(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)
	server := httptest.NewServer(&httpHandler{})
	url := server.URL
	server.Close()

	_, err := newFetcher(url, nil).FetchRate(context.Background(), one, converter.EUR, converter.USD)

	var networkErr *fetchers.NetworkError
	asserts.True(errors.As(err, &networkErr))
	asserts.Equal(0, networkErr.StatusCode)
	asserts.False(errors.Is(err, fetchers.ErrCancelled))
}

func TestEVPFetcher_InvalidAmount(t *testing.T) {
	t.Parallel()
	handler := &httpHandler{}
	server := httptest.NewServer(handler)
	defer server.Close()

	fetcher := newFetcher(server.URL, nil)
	amounts := []string{"0", "-1", "1e20000000", "1e-40"}

	for _, amount := range amounts {
		asserts := require.New(t)
		_, err := fetcher.FetchRate(context.Background(), decimal.RequireFromString(amount), converter.EUR, converter.USD)

		asserts.True(errors.Is(err, fetchers.ErrInvalidURL), amount)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Empty(t, handler.paths)
}

func TestEVPFetcher_InvalidURL(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)

	_, err := newFetcher("://not a url", nil).FetchRate(context.Background(), one, converter.EUR, converter.USD)
	asserts.True(errors.Is(err, fetchers.ErrInvalidURL))
}

func TestEVPFetcher_Supersession(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)
	handler := &blockingHandler{started: make(chan struct{}, 1), release: make(chan struct{})}
	server := httptest.NewServer(handler)
	defer server.Close()
	defer close(handler.release)

	fetcher := newFetcher(server.URL, nil)
	first := make(chan error, 1)

	go func() {
		_, err := fetcher.FetchRate(context.Background(), one, converter.EUR, converter.USD)
		first <- err
	}()

	<-handler.started

	rate, err := fetcher.FetchRate(context.Background(), one, converter.EUR, converter.GBP)
	asserts.Nil(err)
	asserts.Equal("0.8567", rate.String())

	select {
	case err := <-first:
		asserts.True(errors.Is(err, fetchers.ErrCancelled))
	case <-time.After(5 * time.Second):
		asserts.FailNow("superseded request never returned")
	}
}

func TestEVPFetcher_CancelOngoingRequests(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)
	handler := &blockingHandler{started: make(chan struct{}, 1), release: make(chan struct{})}
	server := httptest.NewServer(handler)
	defer server.Close()
	defer close(handler.release)

	fetcher := newFetcher(server.URL, nil)
	asserts.NotPanics(fetcher.CancelOngoingRequests)

	done := make(chan error, 1)
	go func() {
		_, err := fetcher.FetchRate(context.Background(), one, converter.EUR, converter.USD)
		done <- err
	}()

	<-handler.started
	fetcher.CancelOngoingRequests()
	fetcher.CancelOngoingRequests()

	select {
	case err := <-done:
		asserts.True(errors.Is(err, fetchers.ErrCancelled))
	case <-time.After(5 * time.Second):
		asserts.FailNow("cancelled request never returned")
	}
}

func TestEVPFetcher_CallerContextCancelled(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)
	handler := &blockingHandler{started: make(chan struct{}, 1), release: make(chan struct{})}
	server := httptest.NewServer(handler)
	defer server.Close()
	defer close(handler.release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := newFetcher(server.URL, nil).FetchRate(ctx, one, converter.EUR, converter.USD)
		done <- err
	}()

	<-handler.started
	cancel()

	asserts.True(errors.Is(<-done, fetchers.ErrCancelled))
}

func TestEVPFetcher_Logging(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)
	server := httptest.NewServer(&httpHandler{})
	defer server.Close()

	var buf bytes.Buffer
	fetcher := fetchers.NewEVPFetcher(fetchers.EVPConfig{
		BaseConfig: fetchers.BaseConfig{URL: server.URL},
		Logger:     zerolog.New(&buf),
	})

	asserts.False(fetcher.LoggingEnabled())
	_, err := fetcher.FetchRate(context.Background(), one, converter.EUR, converter.USD)
	asserts.Nil(err)
	asserts.Zero(buf.Len())

	fetcher.EnableLogging(true)
	rate, err := fetcher.FetchRate(context.Background(), one, converter.EUR, converter.USD)
	asserts.Nil(err)
	asserts.Equal("1.0857", rate.String())
	asserts.Contains(buf.String(), "/exchange/1.0-EUR/USD/latest")
	asserts.Contains(buf.String(), "Raw API Response")
}

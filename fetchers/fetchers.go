package fetchers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const (
	EVPBaseURL  = "http://api.evp.lt/currency/commercial"
	EVPEndpoint = "exchange"
	EVPProvider = "EVP"
)

var (
	ErrInvalidURL = errors.New("invalid URL")
	ErrDecoding   = errors.New("decoding error")
	ErrNetwork    = errors.New("network error")
	ErrCancelled  = errors.New("request cancelled")

	ErrClient  = errors.New("client error")
	ErrServer  = errors.New("server error")
	ErrUnknown = errors.New("unknown error")
)

type (
	// DecodingError reports a response that did not have the expected shape.
	DecodingError struct {
		Detail string
	}

	// NetworkError wraps a transport failure or a non-2xx response. StatusCode is
	// zero for transport failures.
	NetworkError struct {
		StatusCode int
		Err        error
	}

	BaseConfig struct {
		URL    string
		Client *http.Client
	}
)

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decoding error: %s", e.Detail)
}

func (e *DecodingError) Is(target error) bool {
	return target == ErrDecoding
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error: status %d: %v", e.StatusCode, e.Err)
	}

	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func handleHTTPStatusCodeError(res *http.Response) error {
	if res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	var err error

	switch {
	case res.StatusCode >= http.StatusBadRequest && res.StatusCode < http.StatusInternalServerError:
		err = ErrClient
	case res.StatusCode >= http.StatusInternalServerError:
		err = ErrServer
	default:
		err = ErrUnknown
	}

	return &NetworkError{StatusCode: res.StatusCode, Err: err}
}

func getData(ctx context.Context, rawURL string) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)

	if err != nil {
		return nil, ErrInvalidURL
	}

	req.Header.Add("Accept", "application/json")

	return req, nil
}

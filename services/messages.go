package services

import (
	"errors"
	"fmt"

	"github.com/malusev998/currency-converter/fetchers"
)

// User facing messages. Kept together so they can be swapped for translations.
const (
	MessageInvalidNumber = "Please enter a valid number"
	MessageNoRate        = "Unable to get a valid exchange rate"
	MessageInvalidURL    = "Invalid URL"
	MessageDecoding      = "Unable to read exchange rate: %s"
	MessageStatus        = "Exchange service responded with status %d"
	MessageNetwork       = "Network error: %v"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNoRate        = errors.New("no valid exchange rate")
)

// errorMessage maps a fetch error to the text shown to the user. Cancellation
// has no message.
func errorMessage(err error) string {
	var (
		decodingErr *fetchers.DecodingError
		networkErr  *fetchers.NetworkError
	)

	switch {
	case err == nil, errors.Is(err, fetchers.ErrCancelled):
		return ""
	case errors.Is(err, fetchers.ErrInvalidURL):
		return MessageInvalidURL
	case errors.As(err, &decodingErr):
		return fmt.Sprintf(MessageDecoding, decodingErr.Detail)
	case errors.As(err, &networkErr) && networkErr.StatusCode != 0:
		return fmt.Sprintf(MessageStatus, networkErr.StatusCode)
	case errors.As(err, &networkErr):
		return fmt.Sprintf(MessageNetwork, networkErr.Err)
	default:
		return fmt.Sprintf(MessageNetwork, err)
	}
}

package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/malusev998/currency-converter/logging"
)

func TestParseLevel(t *testing.T) {
	assert := require.New(t)

	values := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, value := range values {
		assert.Equal(value.expected, logging.ParseLevel(value.level))
	}
}

func TestNew_JSON(t *testing.T) {
	assert := require.New(t)
	var buf bytes.Buffer

	logger := logging.New(logging.Config{Level: "warn"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Str("pair", "EUR_USD").Msg("visible")

	var line map[string]interface{}
	assert.Nil(json.Unmarshal(buf.Bytes(), &line))
	assert.Equal("visible", line["message"])
	assert.Equal("EUR_USD", line["pair"])
	assert.Equal("warn", line["level"])
}

func TestNop(t *testing.T) {
	assert := require.New(t)
	logger := logging.Nop()

	assert.Equal(zerolog.Disabled, logger.GetLevel())
	assert.NotPanics(func() { logger.Error().Msg("discarded") })
}

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/irsampler/internal/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]LogLevel{
		"debug":   DebugLevel,
		"info":    InfoLevel,
		"warn":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("loud")
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestComponentLogger(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(prev)

	var buf bytes.Buffer
	log := New(&buf).With("capture")
	log.Warn().Str("file", "1_20240301001000").Msg("I/O blocked a sample")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "capture", line["component"])
	assert.Equal(t, "1_20240301001000", line["file"])
	assert.Equal(t, "I/O blocked a sample", line["message"])
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	err := errors.New().WithData(errors.ErrSerialMismatch, struct{ Found int }{42})
	New(&buf).ErrorWithCode(err).Msg("Device setup failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "serial_mismatch", line["error_code"])
	assert.Equal(t, "error", line["level"])
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().With("x").Error().Str("k", "v").Msg("dropped")
	})
}

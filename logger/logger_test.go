package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestNew_WritesJSONWithRunID(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	l, id := WithRunID(New(Config{Level: "info", Output: &buf}))

	l.Debug().Msg("hidden")
	l.Info().Str("ticker", "QQQ").Msg("Simulated paths")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "debug is below the configured level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Simulated paths", entry["message"])
	assert.Equal(t, "QQQ", entry["ticker"])
	assert.Equal(t, id, entry["run_id"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")

	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestNew_Pretty(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	l := New(Config{Level: "debug", Pretty: true, Output: &buf})
	l.Debug().Msg("console output")

	assert.Contains(t, buf.String(), "console output")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

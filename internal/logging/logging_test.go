package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("aura", Options{Level: "debug", Format: "json", Out: &buf})
	require.NoError(t, err)

	logger.Debug().Str("room", "dungeon").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "aura", entry["app"])
	assert.Equal(t, "dungeon", entry["room"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "hello", entry["message"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("aura", Options{Level: "WARN", Format: "json", Out: &buf})
	require.NoError(t, err)

	logger.Info().Msg("quiet")
	assert.Empty(t, buf.String())
	logger.Warn().Msg("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("aura", Options{Out: &buf})
	require.NoError(t, err)
	logger.Info().Msg("started")
	assert.Contains(t, buf.String(), "started")
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New("aura", Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New("aura", Options{Format: "xml"})
	assert.Error(t, err)
}

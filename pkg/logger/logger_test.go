package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: InfoLevel, Output: &buf}).
		WithFields(map[string]interface{}{"component": "booking"})

	log.Debug("hidden")
	log.Error(errors.New("boom"), "Failed to create booking", "room_id", "r1")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "booking", entry["component"])
	assert.Equal(t, "r1", entry["room_id"])
	assert.Equal(t, "Failed to create booking", entry["message"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
}

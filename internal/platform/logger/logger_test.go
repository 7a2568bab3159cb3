package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rescue/internal/platform/config"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.Logging{Level: "warn", Format: "json"})

	log.Info("dropped below level")
	log.Warn("respondant directory empty", "request_id", "req-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "respondant directory empty", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "rescue", line["service"])
}

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.Logging{Level: "debug", Format: "text"})
	log.Debug("candidate query", "count", 3)
	assert.Contains(t, buf.String(), "count=3")
}

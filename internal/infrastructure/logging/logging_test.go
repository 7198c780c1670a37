package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/crew/internal/infrastructure/config"
)

func TestNew_JSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(config.LogConfig{Level: "info", Format: "json"}, "", &buf)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	logger.Debug("hidden")
	logger.Info("visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "crew", entry["logger"])
	assert.Contains(t, entry, "ts")
}

func TestNew_AlsoWritesLogFile(t *testing.T) {
	root := t.TempDir()
	var buf bytes.Buffer
	logger, closeFn, err := New(config.LogConfig{Level: "debug", Format: "console", File: true}, root, &buf)
	require.NoError(t, err)

	logger.Debug("to both")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(filepath.Join(root, ".crew", "crew.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "DEBUG")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "chatty"}, "", &bytes.Buffer{})
	assert.Error(t, err)
}

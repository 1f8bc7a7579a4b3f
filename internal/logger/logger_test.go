package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetWriter(&buf)
	SetLevel("INFO")
	SetFormat("text")
	t.Cleanup(func() {
		_ = SetOutput("stdout")
		SetLevel("INFO")
		SetFormat("text")
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := reset(t)

	Debug("hidden %d", 1)
	Info("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[INFO] shown 2")

	SetLevel("debug")
	Debug("now visible")
	assert.Contains(t, buf.String(), "[DEBUG] now visible")

	SetLevel("ERROR")
	Warn("dropped")
	Error("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "[ERROR] kept")
}

func TestJSONFormat(t *testing.T) {
	buf := reset(t)
	SetFormat("json")

	Warn("fib(%d) slow", 42)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "fib(42) slow", entry["msg"])
	assert.NotEmpty(t, entry["time"])
}

func TestSetOutput_File(t *testing.T) {
	reset(t)
	path := filepath.Join(t.TempDir(), "fibd.log")

	require.NoError(t, SetOutput(path))
	Info("to file")
	require.NoError(t, SetOutput("stdout"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), "to file"))
}

func TestSetOutput_BadPath(t *testing.T) {
	reset(t)
	err := SetOutput(filepath.Join(t.TempDir(), "missing", "dir", "fibd.log"))
	assert.Error(t, err)
}

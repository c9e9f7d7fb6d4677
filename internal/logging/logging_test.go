package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn", FormatJSON)

	l.Info().Msg("hidden")
	l.Warn().Str("component", "test").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "test", entry["component"])
}

func TestNewLogger_InvalidLevelDefaultsToInfo(t *testing.T) {
	l := NewLogger(&bytes.Buffer{}, "loud", FormatJSON)
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestNewLoggerWithPath(t *testing.T) {
	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "carbonscope.log")
		res := NewLoggerWithPath(Config{Level: "debug", Output: OutputFile, File: path})
		t.Cleanup(func() { _ = res.Close() })

		require.True(t, res.UsingFile)
		assert.False(t, res.FallbackUsed)
		res.Logger.Debug().Msg("to file")
		require.NoError(t, res.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
	})

	t.Run("missing file path falls back", func(t *testing.T) {
		res := NewLoggerWithPath(Config{Output: OutputFile})
		assert.False(t, res.UsingFile)
		assert.True(t, res.FallbackUsed)
		assert.NotEmpty(t, res.FallbackReason)
	})

	t.Run("unwritable directory falls back", func(t *testing.T) {
		res := NewLoggerWithPath(Config{Output: OutputFile, File: filepath.Join(t.TempDir(), "missing", "x.log")})
		assert.True(t, res.FallbackUsed)
	})
}

func TestTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "info", FormatJSON)
	ctx := l.WithContext(context.Background())

	_, ok := TraceIDFromContext(ctx)
	assert.False(t, ok)

	id := GetOrGenerateTraceID(ctx)
	require.Len(t, id, 26)

	ctx = ContextWithTraceID(ctx, id)
	assert.Equal(t, id, GetOrGenerateTraceID(ctx))

	FromContext(ctx).Info().Msg("traced")
	assert.Contains(t, buf.String(), id)
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	l := ComponentLogger(NewLogger(&buf, "info", FormatJSON), "factors")
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"component":"factors"`)
}

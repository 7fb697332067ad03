package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	logger.Info().Str("key", "value").Msg("test message")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, `"key":"value"`)
}

func TestNewJSONNilWriter(t *testing.T) {
	// nil writer falls back to stderr; just verify it does not panic
	logger := NewJSON(nil)
	logger.Debug().Msg("should not panic")
}

func TestSetDefault(t *testing.T) {
	original := Default()
	t.Cleanup(func() { SetDefault(*original) })

	var buf bytes.Buffer
	SetDefault(New(&buf))

	Info().Msg("via default")
	assert.Contains(t, buf.String(), "via default")
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger(t)

	tl.Info().Str("entity", "task").Msg("first")
	tl.Debug().Msg("second")

	require.Equal(t, 2, tl.Count())
	assert.True(t, tl.Contains("first"))
	assert.True(t, tl.Contains(`"entity":"task"`))

	tl.Clear()
	assert.Equal(t, 0, tl.Count())
}

func TestTestLoggerCapturesTrace(t *testing.T) {
	tl := NewTestLogger(t)
	tl.Trace().Msg("trace level")
	assert.True(t, tl.Contains("trace level"))
}

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
		debug string
		want  zerolog.Level
	}{
		{name: "default", want: zerolog.InfoLevel},
		{name: "explicit debug", level: "debug", want: zerolog.DebugLevel},
		{name: "explicit warn", level: "warn", want: zerolog.WarnLevel},
		{name: "invalid falls back", level: "nonsense", want: zerolog.InfoLevel},
		{name: "DEBUG env", debug: "1", want: zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("DEBUG", tt.debug)
			assert.Equal(t, tt.want, getLogLevel())
		})
	}
}

func TestLinesSplitsOutput(t *testing.T) {
	tl := NewTestLogger(t)
	tl.Info().Msg("one")
	tl.Info().Msg("two")

	lines := tl.Lines()
	require.Len(t, lines, 2)
	assert.True(t, strings.Contains(lines[0], "one"))
	assert.True(t, strings.Contains(lines[1], "two"))
}

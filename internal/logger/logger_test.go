package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestProgressHelpersUseLogger(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	var buf bytes.Buffer
	Logger = zerolog.New(&buf)
	Infof("scanning %s", "codex")
	Warnf("close %s store: %v", "claude", "busy")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"info"`)
	assert.Contains(t, lines[0], `"message":"scanning codex"`)
	assert.Contains(t, lines[1], `"level":"warn"`)
	assert.Contains(t, lines[1], `"message":"close claude store: busy"`)
}

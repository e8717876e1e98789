package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestSetOutputRedirectsLines(t *testing.T) {
	buf := capture(t, LevelInfo)

	Info("sync finished", "events", 3)
	Error("failed to list", errors.New("boom"), "account", "work")

	out := buf.String()
	assert.Contains(t, out, "[INFO] sync finished events=3")
	assert.Contains(t, out, "[ERROR] failed to list err=boom account=work")
}

func TestLevelFiltersLines(t *testing.T) {
	buf := capture(t, LevelError)

	Debug("hidden")
	Info("hidden too")
	assert.Empty(t, buf.String())

	SetLevel(LevelDebug)
	Debug("shown")
	assert.Contains(t, buf.String(), "[DEBUG] shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" debug "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

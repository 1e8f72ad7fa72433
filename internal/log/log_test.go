package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
		SetOutput(nil)
	})

	SetLevel(LevelInfo)
	Debug("hidden", "k", "v")
	Info("shown", "uid", "abc")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "uid=abc")

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("now visible")
	assert.Contains(t, buf.String(), "level=DEBUG")

	buf.Reset()
	SetLevel(LevelError)
	Info("suppressed")
	Error("failed", errors.New("boom"), "attempt", 2, "dangling")
	assert.NotContains(t, buf.String(), "suppressed")
	assert.Contains(t, buf.String(), "err=boom")
	assert.Contains(t, buf.String(), "attempt=2")
	assert.NotContains(t, buf.String(), "dangling")
}

package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverPanic_LogsAndSwallows(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	assert.NotPanics(t, func() {
		defer RecoverPanic(logger, "grant reload")
		panic("boom")
	})

	out := buf.String()
	assert.Contains(t, out, "PANIC recovered")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "grant reload")
}

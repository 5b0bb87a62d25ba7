package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshscre/sshscre/internal/logger"
)

func TestRecordPanic(t *testing.T) {
	a, _ := newTestApp(t, "")
	sink := logger.NewBufferLogger()
	a.sink = sink

	assert.PanicsWithValue(t, "boom", func() {
		defer a.recordPanic()
		panic("boom")
	})

	crashes := sink.ByLevel(logger.TagCrash)
	require.Len(t, crashes, 1)
	assert.Contains(t, crashes[0], "panic: boom")
	assert.Contains(t, crashes[0], "goroutine")
}

func TestRecordPanic_NoPanic(t *testing.T) {
	a, _ := newTestApp(t, "")
	sink := logger.NewBufferLogger()
	a.sink = sink

	assert.NotPanics(t, func() {
		defer a.recordPanic()
	})
	assert.Empty(t, sink.Messages)
}

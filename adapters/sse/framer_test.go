package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterFrames(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)

	require.NoError(t, w.Data("Hello"))
	require.NoError(t, w.Done())

	assert.Equal(t, "data: \"Hello\"\n\ndata: [DONE]\n\n", buf.String())
}

func TestWriterEscapesControlSequences(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)

	// A payload containing the frame delimiter must stay inside one frame.
	require.NoError(t, w.Data("line one\n\nline two"))

	frames := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 1)
	assert.Equal(t, `data: "line one\n\nline two"`, frames[0])
}

func TestWriterErrorSentinelIsJSONEncoded(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)

	require.NoError(t, w.Error())
	assert.Equal(t, "data: \"[ERROR]\"\n\n", buf.String())
}

func TestSentinelsAreDistinct(t *testing.T) {
	var done, errFrame strings.Builder
	require.NoError(t, NewWriter(&done).Done())
	require.NoError(t, NewWriter(&errFrame).Error())
	assert.NotEqual(t, done.String(), errFrame.String())

	// No data payload can collide with the done sentinel: data payloads
	// are JSON strings and always start with a quote.
	var data strings.Builder
	require.NoError(t, NewWriter(&data).Data("[DONE]"))
	assert.Equal(t, "data: \"[DONE]\"\n\n", data.String())
	assert.NotEqual(t, done.String(), data.String())
}

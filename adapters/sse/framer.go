// Package sse implements both ends of the chat wire protocol: a framer
// that encodes turn events as server-sent events, and a reassembler that
// rebuilds the reply from the raw byte stream.
//
// Frame grammar, one frame per event, each terminated by a blank line:
//
//	data: <JSON-string fragment>
//	data: [DONE]
//	data: "[ERROR]"
//
// The done sentinel is bare (not valid JSON) so it can never collide with
// a fragment payload; the error sentinel is itself JSON-string-encoded.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	doneSentinel  = "[DONE]"
	errorSentinel = `"[ERROR]"`
)

// Writer frames fragments onto one long-lived response. If the
// underlying writer is an http.Flusher every frame is flushed
// immediately so the client sees fragments as they arrive.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Data emits one fragment frame. The fragment is JSON-string-encoded so
// payloads containing newlines or the frame delimiter stay inside a
// single frame.
func (w *Writer) Data(fragment string) error {
	payload, err := json.Marshal(fragment)
	if err != nil {
		return fmt.Errorf("encoding fragment: %w", err)
	}
	return w.frame(string(payload))
}

// Done emits the completion sentinel.
func (w *Writer) Done() error {
	return w.frame(doneSentinel)
}

// Error emits the error sentinel. Once the stream has started this is
// the only channel left for reporting failure; the HTTP status is
// already committed.
func (w *Writer) Error() error {
	return w.frame(errorSentinel)
}

func (w *Writer) frame(payload string) error {
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	if flusher, ok := w.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

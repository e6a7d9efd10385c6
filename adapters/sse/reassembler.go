package sse

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const (
	// ErrorNotice is appended to the live buffer when the server reports
	// a mid-stream failure.
	ErrorNotice = "\n\n[An error occurred while generating the response.]"

	// FailureNotice stands in for the whole reply when the connection
	// fails before a usable stream arrives.
	FailureNotice = "Sorry, something went wrong. Please try again."
)

// Final is the single finalized message produced by one turn.
type Final struct {
	Content string
	Errored bool
}

// Reassembler consumes a framed event stream and rebuilds the assistant
// reply. The live buffer is append-only for the duration of a turn and
// exactly one Final comes out of Consume no matter how the stream ends.
type Reassembler struct {
	// OnFragment, if set, is called for each appended piece of text in
	// arrival order, for live display.
	OnFragment func(fragment string)
}

// Consume reads frames until the stream ends. Frames may arrive split
// across reads or packed several to a read; bufio handles the
// reassembly. Malformed data frames are dropped, never fatal.
func (r *Reassembler) Consume(body io.Reader) Final {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		buffer    strings.Builder
		committed *Final
		errored   bool
	)

	appendText := func(text string) {
		buffer.WriteString(text)
		if r.OnFragment != nil {
			r.OnFragment(text)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		switch payload {
		case doneSentinel:
			if committed == nil {
				committed = &Final{Content: buffer.String()}
			}
			buffer.Reset()
		case errorSentinel:
			errored = true
			appendText(ErrorNotice)
		default:
			var fragment string
			if err := json.Unmarshal([]byte(payload), &fragment); err != nil {
				continue
			}
			appendText(fragment)
		}
	}

	if committed != nil {
		return *committed
	}
	if errored {
		return Final{Content: buffer.String(), Errored: true}
	}
	// The stream ended without either sentinel: connection-level failure.
	return Final{Content: FailureNotice, Errored: true}
}

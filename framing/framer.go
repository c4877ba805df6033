// Package framing implements the Content-Length wire framing used between
// the SDK and the agent process: each JSON envelope is preceded by a single
// ASCII header line "Content-Length: N\r\n\r\n" where N is the UTF-8 byte
// length of the payload.
package framing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultMaxHeaderBytes bounds the header accumulated before the
	// \r\n\r\n delimiter is seen.
	DefaultMaxHeaderBytes = 4 * 1024
	// DefaultMaxMessageBytes bounds both a declared body length and the
	// total bytes buffered by the decoder at any instant.
	DefaultMaxMessageBytes = 64 * 1024 * 1024
)

var headerDelimiter = []byte("\r\n\r\n")

// Encode frames a serialized JSON payload: header and body are returned as
// one byte run so a single write emits the whole frame.
func Encode(payload []byte) []byte {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	frame := make([]byte, 0, len(header)+len(payload))
	frame = append(frame, header...)
	return append(frame, payload...)
}

// EncodeJSON marshals v and frames the result.
func EncodeJSON(v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame payload: %w", err)
	}
	return Encode(payload), nil
}

// FrameError is a fatal framing failure; once a decoder reports one it
// latches and emits no further messages.
type FrameError struct {
	Message string
}

// Error returns the error message
func (e *FrameError) Error() string {
	return e.Message
}

func frameErrorf(format string, args ...interface{}) *FrameError {
	return &FrameError{Message: fmt.Sprintf(format, args...)}
}

type decoderState int

const (
	stateHeader decoderState = iota
	stateBody
	stateFailed
)

// Frame is one decoded unit from the stream: either a JSON payload or an
// error. A *FrameError is fatal; a plain error marks a body that framed
// correctly but failed to parse as JSON, and decoding continues after it.
type Frame struct {
	Data json.RawMessage
	Err  error
}

// Decoder is a push-style, stateful decoder: the transport appends raw chunks
// with Write (at arbitrary split points, a byte at a time if need be) and
// consumes complete frames from the callback. It is not safe for concurrent
// use; each transport feeds it from its single read loop.
type Decoder struct {
	maxHeaderBytes  int
	maxMessageBytes int
	buffer          []byte
	state           decoderState
	bodyLength      int
	emit            func(Frame)
}

// Option customizes a Decoder.
type Option func(d *Decoder)

// WithMaxHeaderBytes overrides the header accumulation bound.
func WithMaxHeaderBytes(limit int) Option {
	return func(d *Decoder) {
		d.maxHeaderBytes = limit
	}
}

// WithMaxMessageBytes overrides the body and buffer bound.
func WithMaxMessageBytes(limit int) Option {
	return func(d *Decoder) {
		d.maxMessageBytes = limit
	}
}

// NewDecoder creates a decoder delivering frames to emit.
func NewDecoder(emit func(Frame), options ...Option) *Decoder {
	d := &Decoder{
		maxHeaderBytes:  DefaultMaxHeaderBytes,
		maxMessageBytes: DefaultMaxMessageBytes,
		emit:            emit,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Failed reports whether the decoder has latched a fatal framing error.
func (d *Decoder) Failed() bool {
	return d.state == stateFailed
}

// Write appends a chunk of bytes and emits every frame that completes.
// After a fatal framing error the decoder ignores all further input.
func (d *Decoder) Write(chunk []byte) {
	if d.state == stateFailed {
		return
	}
	d.buffer = append(d.buffer, chunk...)
	if len(d.buffer) > d.maxMessageBytes {
		d.fail(frameErrorf("framing buffer exceeded %d bytes", d.maxMessageBytes))
		return
	}
	for d.step() {
	}
}

// step advances the state machine by at most one transition; it returns true
// when another transition may be possible with the already buffered bytes.
func (d *Decoder) step() bool {
	switch d.state {
	case stateHeader:
		index := bytes.Index(d.buffer, headerDelimiter)
		if index == -1 {
			if len(d.buffer) > d.maxHeaderBytes {
				d.fail(frameErrorf("header exceeded %d bytes without terminator", d.maxHeaderBytes))
			}
			return false
		}
		length, err := parseContentLength(d.buffer[:index])
		if err != nil {
			d.fail(err)
			return false
		}
		if length > d.maxMessageBytes {
			d.fail(frameErrorf("declared Content-Length %d exceeds limit %d", length, d.maxMessageBytes))
			return false
		}
		d.buffer = d.buffer[index+len(headerDelimiter):]
		d.bodyLength = length
		d.state = stateBody
		return true
	case stateBody:
		if len(d.buffer) < d.bodyLength {
			return false
		}
		body := make([]byte, d.bodyLength)
		copy(body, d.buffer[:d.bodyLength])
		d.buffer = d.buffer[d.bodyLength:]
		d.state = stateHeader
		if !json.Valid(body) {
			// The frame itself was well formed, only the payload is
			// broken; surface the error and keep decoding.
			d.emit(Frame{Err: fmt.Errorf("invalid JSON payload in frame of %d bytes", d.bodyLength)})
		} else {
			d.emit(Frame{Data: body})
		}
		return true
	}
	return false
}

func (d *Decoder) fail(err error) {
	d.state = stateFailed
	d.buffer = nil
	d.emit(Frame{Err: err})
}

// parseContentLength scans the header block (delimiter excluded) for the
// first case-insensitive Content-Length line. The header must be ASCII;
// other header lines are ignored.
func parseContentLength(header []byte) (int, error) {
	for _, b := range header {
		if b > 127 {
			return 0, frameErrorf("header contains non-ASCII byte 0x%02x", b)
		}
	}
	for _, line := range strings.Split(string(header), "\r\n") {
		if !strings.HasPrefix(strings.ToLower(line), "content-length:") {
			continue
		}
		value := strings.TrimSpace(line[len("content-length:"):])
		length, err := strconv.Atoi(value)
		if err != nil || length < 0 {
			return 0, frameErrorf("invalid Content-Length value %q", value)
		}
		return length, nil
	}
	return 0, frameErrorf("missing Content-Length header in %q", string(header))
}

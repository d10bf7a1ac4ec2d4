package codegen

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrStreamClosed is returned by writes after Close.
var ErrStreamClosed = errors.New("write to closed stream")

// Stream is an append-only in-memory buffer. Its content is always the
// concatenation of every successful write in call order.
type Stream struct {
	name   string
	buf    bytes.Buffer
	closed bool
}

// NewStream returns an open, empty stream.
func NewStream(name string) *Stream {
	return &Stream{name: name}
}

// Write appends p in full.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("%s: %w", s.name, ErrStreamClosed)
	}
	return s.buf.Write(p)
}

// WriteString appends str in full.
func (s *Stream) WriteString(str string) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("%s: %w", s.name, ErrStreamClosed)
	}
	return s.buf.WriteString(str)
}

// Close finalizes the stream. Closing twice is a no-op.
func (s *Stream) Close() error {
	s.closed = true
	return nil
}

// Len returns the number of bytes written.
func (s *Stream) Len() int { return s.buf.Len() }

// Bytes returns the accumulated content. The slice aliases the stream.
func (s *Stream) Bytes() []byte { return s.buf.Bytes() }

// String returns the accumulated content as a string.
func (s *Stream) String() string { return s.buf.String() }

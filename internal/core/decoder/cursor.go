// Package decoder implements protocol decoding.
package decoder

import "firestige.xyz/siemtap/internal/core"

// Cursor is a read position over a captured buffer. It is the only way the
// header decoders touch packet bytes, so no decoder can read past the end of
// the buffer. Cursor is a value: decoders take a copy and return the advanced
// copy, leaving the caller's cursor untouched when they fail.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf []byte) Cursor {
	return Cursor{buf: buf}
}

// Take returns the next n bytes and advances the cursor. If fewer than n bytes
// remain it returns core.ErrInsufficientData and does not advance.
func (c *Cursor) Take(n int) ([]byte, error) {
	b, err := c.Peek(n)
	if err != nil {
		return nil, err
	}
	c.off += n
	return b, nil
}

// Peek returns the next n bytes without advancing.
func (c Cursor) Peek(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, core.ErrInsufficientData
	}
	return c.buf[c.off : c.off+n : c.off+n], nil
}

// Offset returns the number of bytes consumed so far.
func (c Cursor) Offset() int {
	return c.off
}

// Remaining returns the number of unread bytes.
func (c Cursor) Remaining() int {
	return len(c.buf) - c.off
}

// Rest returns the unread bytes without advancing.
func (c Cursor) Rest() []byte {
	return c.buf[c.off:]
}

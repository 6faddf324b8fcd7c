// Package buffer implements the two primitives the codec is built on: a
// Reader cursor over a borrowed byte slice and a growable Writer that
// assembles framed wire messages. Neither type owns a socket; the rolling
// reassembly across TCP chunk boundaries lives one layer up, in the
// decoder package, which feeds each fully-buffered frame body to a Reader
// borrowed for the lifetime of a single parse call.
package buffer

import (
	"bytes"
	"encoding/binary"
)

// Reader is a cursor-based big-endian primitive decoder over a byte slice
// it does not own. Every read method (Byte, Uint16, Int16, Uint32, Int32,
// Bytes, String, CString) advances the cursor. Bytes returns a view into
// the original slice — no bytes are copied — while String and CString
// convert to a Go string, which copies. Callers that need a returned
// []byte to outlive the next mutation of the backing slice must copy it
// themselves (see the decoder package's raw-bytes lifetime contract).
type Reader struct {
	buf []byte
}

// NewReader constructs a Reader over buf. buf is borrowed, not copied.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Reset rebinds the reader to a new borrowed slice, discarding cursor state.
func (r *Reader) Reset(buf []byte) {
	r.buf = buf
}

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int {
	return len(r.buf)
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	if len(r.buf) < 1 {
		return 0, NewInsufficientData(len(r.buf), 1)
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b, nil
}

// Uint16 reads a big-endian uint16.
func (r *Reader) Uint16() (uint16, error) {
	if len(r.buf) < 2 {
		return 0, NewInsufficientData(len(r.buf), 2)
	}
	v := binary.BigEndian.Uint16(r.buf[:2])
	r.buf = r.buf[2:]
	return v, nil
}

// Int16 reads a big-endian int16.
func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

// Uint32 reads a big-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	if len(r.buf) < 4 {
		return 0, NewInsufficientData(len(r.buf), 4)
	}
	v := binary.BigEndian.Uint32(r.buf[:4])
	r.buf = r.buf[4:]
	return v, nil
}

// Int32 reads a big-endian int32.
func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// Bytes returns the next n bytes as a sub-slice; no copy is made.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, NewInsufficientData(len(r.buf), n)
	}
	if len(r.buf) < n {
		return nil, NewInsufficientData(len(r.buf), n)
	}
	v := r.buf[:n]
	r.buf = r.buf[n:]
	return v, nil
}

// String reads exactly n bytes and returns them as a UTF-8 string.
func (r *Reader) String(n int) (string, error) {
	v, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// CString reads bytes up to and past the next NUL terminator and returns
// the bytes preceding it as a UTF-8 string.
func (r *Reader) CString() (string, error) {
	pos := bytes.IndexByte(r.buf, 0)
	if pos == -1 {
		return "", NewMissingNulTerminator()
	}
	s := string(r.buf[:pos])
	r.buf = r.buf[pos+1:]
	return s, nil
}

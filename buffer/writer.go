package buffer

import (
	"bytes"
	"encoding/binary"
)

// reservedHeader is the code byte plus the 4-byte length field written at
// the start of every frame and patched in place once the body is known.
const reservedHeader = 5

// Writer is a growable buffer that assembles one framed wire message at a
// time. Flush computes the length-including-itself field, writes it into
// the reserved header bytes, and returns the complete frame; the writer is
// then reset and ready to build the next message.
type Writer struct {
	frame bytes.Buffer
	err   error
}

// NewWriter constructs an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Start resets the writer and reserves the 5-byte frame header (code +
// length) that Flush will patch in.
func (w *Writer) Start() {
	w.Reset()
	w.frame.Write(make([]byte, reservedHeader))
}

// WriteByte appends a single byte.
func (w *Writer) WriteByte(b byte) {
	if w.err != nil {
		return
	}
	w.err = w.frame.WriteByte(b)
}

// WriteUint16 appends a big-endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	w.writeFixed(func(b []byte) { binary.BigEndian.PutUint16(b, v) }, 2)
}

// WriteInt16 appends a big-endian int16.
func (w *Writer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

// WriteUint32 appends a big-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	w.writeFixed(func(b []byte) { binary.BigEndian.PutUint32(b, v) }, 4)
}

// WriteInt32 appends a big-endian int32.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *Writer) writeFixed(put func([]byte), n int) {
	if w.err != nil {
		return
	}
	var b [4]byte
	put(b[:n])
	_, w.err = w.frame.Write(b[:n])
}

// WriteRaw appends the given bytes verbatim.
func (w *Writer) WriteRaw(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.frame.Write(b)
}

// WriteString appends s without a terminator, for fixed-length string fields.
func (w *Writer) WriteString(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.frame.WriteString(s)
}

// WriteCString appends s followed by a NUL terminator.
func (w *Writer) WriteCString(s string) {
	w.WriteString(s)
	w.WriteByte(0)
}

// Err returns the first error encountered while building the current frame.
func (w *Writer) Err() error {
	return w.err
}

// Reset discards any in-progress frame.
func (w *Writer) Reset() {
	w.frame.Reset()
	w.err = nil
}

// Flush stamps the reserved header with code and the body length (body
// length + 4, the length field's own width), returns the full frame, and
// resets the writer so it is ready to build the next message.
func (w *Writer) Flush(code byte) ([]byte, error) {
	defer w.Reset()
	if w.err != nil {
		return nil, w.err
	}

	raw := w.frame.Bytes()
	raw[0] = code
	binary.BigEndian.PutUint32(raw[1:5], uint32(len(raw)-1))
	return raw, nil
}

// EncodeBoolean returns a string value ("on"/"off") representing a boolean
// runtime parameter, matching the textual form Postgres clients expect in
// ParameterStatus messages.
func EncodeBoolean(value bool) string {
	if value {
		return "on"
	}
	return "off"
}

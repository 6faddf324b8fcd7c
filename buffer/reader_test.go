package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderPrimitives(t *testing.T) {
	t.Parallel()

	raw := []byte{0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x03, 'h', 'i', 0}
	r := NewReader(raw)

	b, err := r.Byte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)

	u16, err := r.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), u16)

	i32, err := r.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(3), i32)

	s, err := r.CString()
	require.NoError(t, err)
	assert.Equal(t, "hi", s)

	assert.Equal(t, 0, r.Len())
}

func TestReaderBytesIsNoCopy(t *testing.T) {
	t.Parallel()

	raw := []byte{1, 2, 3, 4}
	r := NewReader(raw)

	b, err := r.Bytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)

	raw[0] = 0xff
	assert.Equal(t, byte(0xff), b[0], "Bytes must return a view, not a copy")
}

func TestReaderString(t *testing.T) {
	t.Parallel()

	r := NewReader([]byte("hello"))
	s, err := r.String(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestReaderInsufficientData(t *testing.T) {
	t.Parallel()

	r := NewReader([]byte{1})
	_, err := r.Uint32()
	require.Error(t, err)

	var insufficient ErrInsufficientData
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Available)
	assert.Equal(t, 4, insufficient.Wanted)
}

func TestReaderCStringMissingTerminator(t *testing.T) {
	t.Parallel()

	r := NewReader([]byte("no terminator"))
	_, err := r.CString()
	require.Error(t, err)

	var missing ErrMissingNulTerminator
	require.ErrorAs(t, err, &missing)
}

func TestReaderBytesNegativeLength(t *testing.T) {
	t.Parallel()

	r := NewReader([]byte{1, 2, 3})
	_, err := r.Bytes(-1)
	require.Error(t, err)
}

func TestReaderReset(t *testing.T) {
	t.Parallel()

	r := NewReader([]byte{1, 2, 3})
	_, _ = r.Byte()
	assert.Equal(t, 2, r.Len())

	r.Reset([]byte{9, 9})
	assert.Equal(t, 2, r.Len())
}

package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingWriter struct {
	bytes []byte
}

func (w *recordingWriter) WriteByte(b byte)      { w.bytes = append(w.bytes, b) }
func (w *recordingWriter) WriteCString(s string) { w.bytes = append(append(w.bytes, s...), 0) }
func (w *recordingWriter) WriteInt32(v int32)    { w.bytes = append(w.bytes, byte(v)) }

func TestNoticeOrErrorRoundTrip(t *testing.T) {
	t.Parallel()

	n := NoticeOrError{
		Severity: "ERROR",
		Code:     "42P01",
		Message:  `relation "x" does not exist`,
	}

	w := &recordingWriter{}
	n.WriteFields(w)

	var got NoticeOrError
	i := 0
	for i < len(w.bytes) {
		tag := w.bytes[i]
		i++
		if tag == 0 {
			break
		}
		start := i
		for w.bytes[i] != 0 {
			i++
		}
		value := string(w.bytes[start:i])
		i++
		got.SetField(tag, value)
	}

	assert.Equal(t, n.Severity, got.Severity)
	assert.Equal(t, n.Code, got.Code)
	assert.Equal(t, n.Message, got.Message)
}

func TestNoticeOrErrorOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	n := NoticeOrError{Message: "only a message"}
	w := &recordingWriter{}
	n.WriteFields(w)

	// M<message>\0 then the zero terminator: no other tag bytes appear.
	assert.Equal(t, byte('M'), w.bytes[0])
	assert.Equal(t, byte(0), w.bytes[len(w.bytes)-1])
}

func TestNoticeOrErrorUnknownTagIgnored(t *testing.T) {
	t.Parallel()

	var n NoticeOrError
	n.SetField('Z', "unrecognized")
	assert.Equal(t, NoticeOrError{}, n)
}

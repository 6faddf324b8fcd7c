package decoder

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexpg/pgwire/buffer"
	"github.com/hexpg/pgwire/message"
)

// startupPacket builds the unframed startup preamble for options.
func startupPacket(t *testing.T, options map[string]string) []byte {
	t.Helper()

	var body bytes.Buffer
	var version [4]byte
	version[0], version[1], version[2], version[3] = 0, 3, 0, 0
	body.Write(version[:])
	for k, v := range options {
		body.WriteString(k)
		body.WriteByte(0)
		body.WriteString(v)
		body.WriteByte(0)
	}
	body.WriteByte(0)

	var out bytes.Buffer
	var length [4]byte
	total := 4 + body.Len()
	length[0] = byte(total >> 24)
	length[1] = byte(total >> 16)
	length[2] = byte(total >> 8)
	length[3] = byte(total)
	out.Write(length[:])
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestCommandDecoderStartup(t *testing.T) {
	t.Parallel()

	dec := NewCommandDecoder(nil)
	raw := startupPacket(t, map[string]string{"user": "alice", "database": "d"})

	var got message.Command
	err := dec.Feed(raw, func(cmd message.Command, rawBytes []byte) error {
		got = cmd
		assert.Equal(t, raw, rawBytes)
		return nil
	})
	require.NoError(t, err)
	require.True(t, dec.StartedUp())

	init, ok := got.(message.Init)
	require.True(t, ok)
	assert.Equal(t, uint16(3), init.Major)
	assert.Equal(t, "alice", init.Options["user"])
	assert.Equal(t, "d", init.Options["database"])
}

func TestCommandDecoderRejectsNonV3Startup(t *testing.T) {
	t.Parallel()

	dec := NewCommandDecoder(nil)
	raw := startupPacket(t, nil)
	raw[4] = 4 // corrupt the major version's high byte so it no longer reads 3

	err := dec.Feed(raw, func(message.Command, []byte) error { return nil })
	require.Error(t, err)

	var fatal FatalError
	require.ErrorAs(t, err, &fatal)
}

func TestCommandDecoderDoesNotReenterStartup(t *testing.T) {
	t.Parallel()

	dec := NewCommandDecoder(nil)
	raw := startupPacket(t, map[string]string{"user": "alice"})

	require.NoError(t, dec.Feed(raw, func(message.Command, []byte) error { return nil }))
	require.True(t, dec.StartedUp())

	// Once startedUp, the decoder treats incoming bytes as the framed
	// stream, never as a second unframed startup packet: feeding the exact
	// same bytes again must not invoke the handler with another Init.
	var calls int
	err := dec.Feed(raw, func(cmd message.Command, _ []byte) error {
		calls++
		_, isInit := cmd.(message.Init)
		assert.False(t, isInit, "decoder must not re-parse a startup packet once startedUp")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls, "frame is incomplete relative to the (misinterpreted) declared length, so no message is emitted yet")
}

// TestCommandDecoderStopsFeedOnStartupErrStop checks that a handler
// returning ErrStop from the still-unstarted-up branch halts Feed
// immediately, the same way it does once startedUp. If a client pipelines
// its startup packet and its first command into a single chunk (as
// ReadOneCommand's capture callback relies on), the command bytes after
// Init must remain unconsumed in the rolling buffer rather than being
// silently decoded and discarded.
func TestCommandDecoderStopsFeedOnStartupErrStop(t *testing.T) {
	t.Parallel()

	dec := NewCommandDecoder(nil)

	var chunk bytes.Buffer
	chunk.Write(startupPacket(t, map[string]string{"user": "alice"}))
	chunk.Write(buildFrame(t, 'Q', func(w *buffer.Writer) { w.WriteCString("SELECT 1") }))

	var calls int
	err := dec.Feed(chunk.Bytes(), func(cmd message.Command, _ []byte) error {
		calls++
		_, isInit := cmd.(message.Init)
		require.True(t, isInit, "first dispatched command must be the startup packet")
		return ErrStop
	})
	require.NoError(t, err)
	require.True(t, dec.StartedUp())
	assert.Equal(t, 1, calls, "Feed must stop after Init, not also decode the pipelined Query")

	// The Query frame is still sitting in the rolling buffer, unconsumed;
	// a subsequent Feed (with no new bytes) must now decode it.
	var got message.Command
	require.NoError(t, dec.Feed(nil, func(cmd message.Command, _ []byte) error {
		got = cmd
		return nil
	}))
	assert.Equal(t, message.Query{Query: "SELECT 1"}, got)
}

func buildFrame(t *testing.T, code byte, body func(w *buffer.Writer)) []byte {
	t.Helper()
	w := buffer.NewWriter()
	w.Start()
	body(w)
	raw, err := w.Flush(code)
	require.NoError(t, err)
	return raw
}

func startedDecoder(t *testing.T) *CommandDecoder {
	t.Helper()
	dec := NewCommandDecoder(nil)
	raw := startupPacket(t, map[string]string{"user": "u"})
	require.NoError(t, dec.Feed(raw, func(message.Command, []byte) error { return nil }))
	return dec
}

func TestCommandDecoderQuery(t *testing.T) {
	t.Parallel()

	dec := startedDecoder(t)
	raw := buildFrame(t, 'Q', func(w *buffer.Writer) { w.WriteCString("SELECT 1") })

	var got message.Command
	err := dec.Feed(raw, func(cmd message.Command, rawBytes []byte) error {
		got = cmd
		assert.Equal(t, raw, rawBytes)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, message.Query{Query: "SELECT 1"}, got)
}

func TestCommandDecoderExtendedProtocolSequence(t *testing.T) {
	t.Parallel()

	dec := startedDecoder(t)

	var frames bytes.Buffer
	frames.Write(buildFrame(t, 'P', func(w *buffer.Writer) {
		w.WriteCString("q")
		w.WriteCString("SELECT $1")
		w.WriteUint16(1)
		w.WriteUint32(23)
	}))
	frames.Write(buildFrame(t, 'B', func(w *buffer.Writer) {
		w.WriteCString("")
		w.WriteCString("q")
		w.WriteUint16(0)
		w.WriteUint16(1)
		w.WriteInt16(0)
		w.WriteInt32(2)
		w.WriteString("42")
		w.WriteInt16(0)
	}))
	frames.Write(buildFrame(t, 'D', func(w *buffer.Writer) {
		w.WriteByte('P')
		w.WriteCString("")
	}))
	frames.Write(buildFrame(t, 'E', func(w *buffer.Writer) {
		w.WriteCString("")
		w.WriteUint32(0)
	}))
	frames.Write(buildFrame(t, 'S', func(*buffer.Writer) {}))

	var got []message.Command
	err := dec.Feed(frames.Bytes(), func(cmd message.Command, _ []byte) error {
		got = append(got, cmd)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, message.Parse{QueryName: "q", Query: "SELECT $1", ParameterTypes: []uint32{23}}, got[0])
	bind, ok := got[1].(message.Bind)
	require.True(t, ok)
	assert.Equal(t, "q", bind.Statement)
	require.Len(t, bind.Values, 1)
	assert.Equal(t, "42", bind.Values[0].Text)
	assert.False(t, bind.Values[0].Null)

	portalOp, ok := got[2].(message.PortalOp)
	require.True(t, ok)
	assert.Equal(t, message.PortalDescribe, portalOp.Kind)
	assert.Equal(t, message.DescribePortal, portalOp.PortalType)

	assert.Equal(t, message.Execute{Portal: "", Rows: 0}, got[3])
	assert.Equal(t, message.CodeOnly{Kind: message.CodeSync}, got[4])
}

// TestCommandDecoderFragmentedDelivery checks the framing robustness
// property: delivering the same byte stream one byte at a time produces
// the identical sequence of typed messages as delivering it whole.
func TestCommandDecoderFragmentedDelivery(t *testing.T) {
	t.Parallel()

	var frames bytes.Buffer
	frames.Write(buildFrame(t, 'P', func(w *buffer.Writer) {
		w.WriteCString("q")
		w.WriteCString("SELECT $1")
		w.WriteUint16(1)
		w.WriteUint32(23)
	}))
	frames.Write(buildFrame(t, 'B', func(w *buffer.Writer) {
		w.WriteCString("")
		w.WriteCString("q")
		w.WriteUint16(0)
		w.WriteUint16(1)
		w.WriteInt16(0)
		w.WriteInt32(2)
		w.WriteString("42")
		w.WriteInt16(0)
	}))
	frames.Write(buildFrame(t, 'S', func(*buffer.Writer) {}))

	whole := startedDecoder(t)
	var wholeGot []message.Command
	require.NoError(t, whole.Feed(frames.Bytes(), func(cmd message.Command, _ []byte) error {
		wholeGot = append(wholeGot, cmd)
		return nil
	}))

	fragmented := startedDecoder(t)
	var fragGot []message.Command
	var rawParts [][]byte
	body := frames.Bytes()
	for i := 0; i < len(body); i++ {
		chunk := body[i : i+1]
		require.NoError(t, fragmented.Feed(chunk, func(cmd message.Command, raw []byte) error {
			fragGot = append(fragGot, cmd)
			rawParts = append(rawParts, append([]byte(nil), raw...))
			return nil
		}))
	}

	assert.Equal(t, wholeGot, fragGot)

	var reconstructed bytes.Buffer
	for _, part := range rawParts {
		reconstructed.Write(part)
	}
	assert.Equal(t, body, reconstructed.Bytes())
}

func TestCommandDecoderBindNullValue(t *testing.T) {
	t.Parallel()

	dec := startedDecoder(t)
	raw := buildFrame(t, 'B', func(w *buffer.Writer) {
		w.WriteCString("")
		w.WriteCString("")
		w.WriteUint16(0)
		w.WriteUint16(1)
		w.WriteInt16(0)
		w.WriteInt32(-1)
		w.WriteInt16(0)
	})

	var got message.Command
	err := dec.Feed(raw, func(cmd message.Command, _ []byte) error {
		got = cmd
		return nil
	})
	require.NoError(t, err)

	bind := got.(message.Bind)
	require.Len(t, bind.Values, 1)
	assert.True(t, bind.Values[0].Null)
}

func TestCommandDecoderUnknownCodeIsFatal(t *testing.T) {
	t.Parallel()

	dec := startedDecoder(t)
	raw := buildFrame(t, '~', func(*buffer.Writer) {})

	err := dec.Feed(raw, func(message.Command, []byte) error { return nil })
	require.Error(t, err)

	var fatal FatalError
	require.ErrorAs(t, err, &fatal)
}

func TestCommandDecoderMalformedDescribePrefix(t *testing.T) {
	t.Parallel()

	dec := startedDecoder(t)
	raw := buildFrame(t, 'D', func(w *buffer.Writer) {
		w.WriteCString("X")
	})

	err := dec.Feed(raw, func(message.Command, []byte) error { return nil })
	require.Error(t, err)
}

func TestCommandDecoderCopyFlow(t *testing.T) {
	t.Parallel()

	dec := startedDecoder(t)

	var frames bytes.Buffer
	frames.Write(buildFrame(t, 'd', func(w *buffer.Writer) { w.WriteRaw([]byte("1,2,3\n")) }))
	frames.Write(buildFrame(t, 'c', func(*buffer.Writer) {}))

	var got []message.Command
	require.NoError(t, dec.Feed(frames.Bytes(), func(cmd message.Command, _ []byte) error {
		got = append(got, cmd)
		return nil
	}))

	require.Len(t, got, 2)
	assert.Equal(t, message.CopyFromChunk{Buffer: []byte("1,2,3\n")}, got[0])
	assert.Equal(t, message.CodeOnly{Kind: message.CodeCopyDone}, got[1])
}

func TestCommandDecoderCopyFail(t *testing.T) {
	t.Parallel()

	dec := startedDecoder(t)
	raw := buildFrame(t, 'f', func(w *buffer.Writer) { w.WriteCString("client gave up") })

	var got message.Command
	require.NoError(t, dec.Feed(raw, func(cmd message.Command, _ []byte) error {
		got = cmd
		return nil
	}))
	assert.Equal(t, message.CopyFail{Message: "client gave up"}, got)
}

package encoder

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexpg/pgwire/decoder"
	"github.com/hexpg/pgwire/message"
)

// minimalStartupPacket builds the smallest valid v3 startup packet: just
// the version field and the trailing empty-options terminator.
func minimalStartupPacket() []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, uint32(message.Version30))
	body = append(body, 0) // empty key terminates the option list

	raw := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(raw, uint32(len(raw)))
	copy(raw[4:], body)
	return raw
}

func decodeOneCommand(t *testing.T, raw []byte) message.Command {
	t.Helper()

	dec := decoder.NewCommandDecoder(nil)
	require.NoError(t, dec.Feed(minimalStartupPacket(), func(message.Command, []byte) error { return nil }))
	require.True(t, dec.StartedUp())

	var got message.Command
	require.NoError(t, dec.Feed(raw, func(cmd message.Command, _ []byte) error {
		got = cmd
		return nil
	}))
	require.NotNil(t, got)
	return got
}

func TestCommandEncoderQueryRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewCommandEncoder(&buf, nil)
	require.NoError(t, enc.Query("SELECT * FROM b"))

	assert.Equal(t, message.Query{Query: "SELECT * FROM b"}, decodeOneCommand(t, buf.Bytes()))
}

func TestCommandEncoderParseRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewCommandEncoder(&buf, nil)
	cmd := message.Parse{QueryName: "q", Query: "SELECT $1", ParameterTypes: []uint32{23}}
	require.NoError(t, enc.Parse(cmd))

	assert.Equal(t, cmd, decodeOneCommand(t, buf.Bytes()))
}

func TestCommandEncoderBindRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewCommandEncoder(&buf, nil)
	cmd := message.Bind{
		Portal:    "",
		Statement: "q",
		Values:    []message.Value{message.NewTextValue("42")},
		Binary:    false,
	}
	require.NoError(t, enc.Bind(cmd))

	assert.Equal(t, cmd, decodeOneCommand(t, buf.Bytes()))
}

func TestCommandEncoderExecuteRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewCommandEncoder(&buf, nil)
	cmd := message.Execute{Portal: "p", Rows: 10}
	require.NoError(t, enc.Execute(cmd))

	assert.Equal(t, cmd, decodeOneCommand(t, buf.Bytes()))
}

func TestCommandEncoderPortalOpRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewCommandEncoder(&buf, nil)
	cmd := message.PortalOp{Kind: message.PortalDescribe, PortalType: message.DescribePortal, Name: ""}
	require.NoError(t, enc.PortalOp(cmd))

	assert.Equal(t, cmd, decodeOneCommand(t, buf.Bytes()))
}

func TestCommandEncoderCodeOnlyRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewCommandEncoder(&buf, nil)
	cmd := message.CodeOnly{Kind: message.CodeSync}
	require.NoError(t, enc.Code(cmd))

	assert.Equal(t, cmd, decodeOneCommand(t, buf.Bytes()))
}

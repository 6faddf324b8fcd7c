package encoder

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexpg/pgwire/decoder"
	"github.com/hexpg/pgwire/message"
)

// decodeOneResponse drives the encoded bytes back through a ResponseDecoder,
// asserting the round-trip law: decode(encodeResponse(r)) == r.
func decodeOneResponse(t *testing.T, raw []byte) message.Response {
	t.Helper()

	dec := decoder.NewResponseDecoder(nil)
	var got message.Response
	require.NoError(t, dec.Feed(raw, func(resp message.Response, _ []byte) error {
		got = resp
		return nil
	}))
	require.NotNil(t, got)
	return got
}

func TestResponseEncoderReadyForQuery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewResponseEncoder(&buf, nil)
	require.NoError(t, enc.ReadyForQuery('T'))

	assert.Equal(t, message.ReadyForQuery{Status: 'T'}, decodeOneResponse(t, buf.Bytes()))
}

func TestResponseEncoderDataRowWithNull(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewResponseEncoder(&buf, nil)

	one := "1"
	require.NoError(t, enc.DataRow([]*string{&one, nil}))

	got := decodeOneResponse(t, buf.Bytes()).(message.DataRow)
	require.Len(t, got.Fields, 2)
	require.NotNil(t, got.Fields[0])
	assert.Equal(t, "1", *got.Fields[0])
	assert.Nil(t, got.Fields[1])
}

func TestResponseEncoderRowDescription(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewResponseEncoder(&buf, nil)

	fields := []message.FieldDesc{{Name: "id", DataTypeID: 23, DataTypeSize: 4, Mode: message.TextFormat}}
	require.NoError(t, enc.RowDescription(fields))

	got := decodeOneResponse(t, buf.Bytes()).(message.RowDescription)
	assert.Equal(t, fields, got.Fields)
}

func TestResponseEncoderAuthentication(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewResponseEncoder(&buf, nil)
	require.NoError(t, enc.AuthenticationOk())
	assert.Equal(t, message.Authentication{Kind: message.AuthOk}, decodeOneResponse(t, buf.Bytes()))

	buf.Reset()
	require.NoError(t, enc.AuthenticationSASL([]string{"SCRAM-SHA-256"}))
	assert.Equal(t, message.Authentication{Kind: message.AuthSASL, Mechanisms: []string{"SCRAM-SHA-256"}}, decodeOneResponse(t, buf.Bytes()))
}

func TestResponseEncoderErrorFromString(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewResponseEncoder(&buf, nil)
	require.NoError(t, enc.Error("forbidden"))

	got := decodeOneResponse(t, buf.Bytes()).(message.ErrorResponse)
	assert.Equal(t, "forbidden", got.Fields.Message)
	assert.Equal(t, "ERROR", got.Fields.Severity)
}

func TestResponseEncoderErrorFromArbitraryError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewResponseEncoder(&buf, nil)
	require.NoError(t, enc.Error(errors.New("boom")))

	got := decodeOneResponse(t, buf.Bytes()).(message.ErrorResponse)
	assert.Equal(t, "boom", got.Fields.Message)
}

func TestResponseEncoderCopyResponses(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewResponseEncoder(&buf, nil)
	require.NoError(t, enc.CopyOutResponse(false, []uint16{0, 0}))

	got := decodeOneResponse(t, buf.Bytes()).(message.CopyOutResponse)
	assert.Equal(t, message.CopyOutResponse{IsBinary: false, ColumnTypes: []uint16{0, 0}}, got)
}

func TestResponseEncoderCodeOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewResponseEncoder(&buf, nil)
	require.NoError(t, enc.Code(message.ServerCodeOnly{Kind: message.CodeNoData}))

	assert.Equal(t, message.ServerCodeOnly{Kind: message.CodeNoData}, decodeOneResponse(t, buf.Bytes()))
}

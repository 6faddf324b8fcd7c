package proxy

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexpg/pgwire/codes"
	"github.com/hexpg/pgwire/decoder"
	"github.com/hexpg/pgwire/encoder"
	"github.com/hexpg/pgwire/message"
)

func TestForwardQueryPassesUnchangedTextRaw(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(nil, Identity, nil)

	upstreamServer, upstreamClient := net.Pipe()
	defer upstreamServer.Close()
	defer upstreamClient.Close()

	raw := []byte("raw-bytes-for-this-command")
	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, len(raw))
		n, _ := upstreamServer.Read(buf)
		readDone <- buf[:n]
	}()

	var clientOut bytes.Buffer
	clientEnc := encoder.NewResponseEncoder(&clientOut, nil)

	err := o.forwardQuery(context.Background(), "SELECT 1", clientEnc, func(string) error {
		t.Fatal("reserialize should not be called for an unchanged query")
		return nil
	}, raw, upstreamClient)
	require.NoError(t, err)

	assert.Equal(t, raw, <-readDone)
	assert.Zero(t, clientOut.Len())
}

func TestForwardQueryCallsReserializeOnRewrite(t *testing.T) {
	t.Parallel()

	rewrite := func(ctx context.Context, query string) (string, error) {
		return query + " LIMIT 1", nil
	}
	o := NewOrchestrator(nil, rewrite, nil)

	var clientOut bytes.Buffer
	clientEnc := encoder.NewResponseEncoder(&clientOut, nil)

	var reserialized string
	err := o.forwardQuery(context.Background(), "SELECT 1", clientEnc, func(text string) error {
		reserialized = text
		return nil
	}, []byte("unused"), nil)
	require.NoError(t, err)

	assert.Equal(t, "SELECT 1 LIMIT 1", reserialized)
	assert.Zero(t, clientOut.Len())
}

func TestForwardQueryRejectsAndNotifiesClient(t *testing.T) {
	t.Parallel()

	deny := func(ctx context.Context, query string) (string, error) {
		return "", errors.New("query not permitted")
	}
	o := NewOrchestrator(nil, deny, nil)

	var clientOut bytes.Buffer
	clientEnc := encoder.NewResponseEncoder(&clientOut, nil)

	err := o.forwardQuery(context.Background(), "DROP TABLE accounts", clientEnc, func(string) error {
		t.Fatal("reserialize should not be called when the policy rejects the query")
		return nil
	}, []byte("unused"), nil)
	require.NoError(t, err)

	dec := decoder.NewResponseDecoder(nil)
	var got []message.Response
	require.NoError(t, dec.Feed(clientOut.Bytes(), func(resp message.Response, _ []byte) error {
		got = append(got, resp)
		return nil
	}))

	require.Len(t, got, 2)
	errResp, ok := got[0].(message.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, "query not permitted", errResp.Fields.Message)
	assert.Equal(t, string(codes.InsufficientPrivilege), errResp.Fields.Code)
	assert.Equal(t, "query_policy", errResp.Fields.ConstraintName)
	assert.Equal(t, message.ReadyForQuery{Status: 'I'}, got[1])
}

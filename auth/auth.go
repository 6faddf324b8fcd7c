// Package auth provides pluggable authentication strategies for the
// startup exchange: trust, cleartext password, MD5 challenge/response,
// and SASL SCRAM-SHA-256. Credential verification itself is an external
// collaborator — these strategies only drive the wire exchange and call
// back into caller-supplied validation functions.
package auth

import (
	"context"
	"io"

	"github.com/hexpg/pgwire/decoder"
	"github.com/hexpg/pgwire/encoder"
)

// Strategy drives the authentication portion of the startup exchange. It
// is handed the already-constructed command decoder and response encoder
// bound to the connection, plus a blocking reader for use with
// decoder.ReadOneCommand when the strategy needs a client reply (e.g. the
// password response following a challenge). The returned context carries
// whatever identity information the strategy extracted (see WithUsername).
type Strategy func(ctx context.Context, reader io.Reader, dec *decoder.CommandDecoder, enc *encoder.ResponseEncoder) (context.Context, error)

type ctxKey int

const ctxUsername ctxKey = iota

// WithUsername attaches the authenticated username to ctx.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxUsername, username)
}

// Username returns the authenticated username previously attached to ctx,
// or "" if none was set.
func Username(ctx context.Context) string {
	u, _ := ctx.Value(ctxUsername).(string)
	return u
}

// Trust authenticates every connection unconditionally; useful for local
// development servers and honeypots that want to observe post-auth traffic.
func Trust() Strategy {
	return func(ctx context.Context, _ io.Reader, _ *decoder.CommandDecoder, enc *encoder.ResponseEncoder) (context.Context, error) {
		return ctx, enc.AuthenticationOk()
	}
}

package auth

import (
	"context"
	"fmt"
	"io"

	"github.com/hexpg/pgwire/decoder"
	"github.com/hexpg/pgwire/encoder"
	"github.com/hexpg/pgwire/message"
)

// ClearTextPassword challenges the client for a plaintext password and
// calls validate(ctx, username, password) to decide whether to accept it.
func ClearTextPassword(validate func(ctx context.Context, username, password string) (bool, error)) Strategy {
	return func(ctx context.Context, reader io.Reader, dec *decoder.CommandDecoder, enc *encoder.ResponseEncoder) (context.Context, error) {
		if err := enc.AuthenticationCleartextPassword(); err != nil {
			return ctx, err
		}

		cmd, _, err := decoder.ReadOneCommand(reader, dec)
		if err != nil {
			return ctx, fmt.Errorf("pgwire: failed to read password response: %w", err)
		}

		resp, ok := cmd.(message.StartupMd5)
		if !ok {
			return ctx, fmt.Errorf("pgwire: expected password response, got %T", cmd)
		}

		ok, err = validate(ctx, Username(ctx), resp.Response)
		if err != nil {
			return ctx, err
		}
		if !ok {
			return ctx, ErrInvalidPassword
		}

		return ctx, enc.AuthenticationOk()
	}
}

// ErrInvalidPassword is returned by a Strategy when the supplied
// credentials are rejected.
var ErrInvalidPassword = fmt.Errorf("pgwire: invalid password")

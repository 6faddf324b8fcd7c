package auth

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/hexpg/pgwire/decoder"
	"github.com/hexpg/pgwire/encoder"
	"github.com/hexpg/pgwire/message"
)

// MD5Password performs the Postgres MD5 challenge/response exchange.
// lookup returns the stored "md5"+hex(md5(password+username)) digest for
// username (Postgres's own pg_authid.rolpassword format), so plaintext
// passwords never need to exist on the server side.
func MD5Password(lookup func(ctx context.Context, username string) (storedDigest string, err error)) Strategy {
	return func(ctx context.Context, reader io.Reader, dec *decoder.CommandDecoder, enc *encoder.ResponseEncoder) (context.Context, error) {
		var salt [4]byte
		if _, err := rand.Read(salt[:]); err != nil {
			return ctx, err
		}

		if err := enc.AuthenticationMD5Password(salt); err != nil {
			return ctx, err
		}

		cmd, _, err := decoder.ReadOneCommand(reader, dec)
		if err != nil {
			return ctx, fmt.Errorf("pgwire: failed to read MD5 response: %w", err)
		}

		resp, ok := cmd.(message.StartupMd5)
		if !ok {
			return ctx, fmt.Errorf("pgwire: expected MD5 password response, got %T", cmd)
		}

		stored, err := lookup(ctx, Username(ctx))
		if err != nil {
			return ctx, err
		}

		expected := "md5" + hex.EncodeToString(md5Sum([]byte(stored[len("md5"):]+string(salt[:]))))
		if resp.Response != expected {
			return ctx, ErrInvalidPassword
		}

		return ctx, enc.AuthenticationOk()
	}
}

func md5Sum(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}

package pgwire

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hexpg/pgwire/auth"
)

// Mode selects how DataRow/Bind values are expected to be decoded. Binary
// mode is declared unsupported by contract: constructing a server with
// Mode set to ModeBinary fails immediately rather than silently
// misinterpreting rows later.
type Mode string

const (
	ModeText   Mode = "text"
	ModeBinary Mode = "binary"
)

// OptionFn configures a Server at construction time.
type OptionFn func(*Server) error

// WithLogger overrides the default slog.Logger used for session and proxy
// diagnostics.
func WithLogger(logger *slog.Logger) OptionFn {
	return func(srv *Server) error {
		srv.logger = logger
		return nil
	}
}

// WithVersion sets the server_version parameter advertised to clients.
func WithVersion(version string) OptionFn {
	return func(srv *Server) error {
		srv.version = version
		return nil
	}
}

// WithParameters merges additional server parameters into the defaults
// written after authentication.
func WithParameters(params Parameters) OptionFn {
	return func(srv *Server) error {
		if srv.parameters == nil {
			srv.parameters = Parameters{}
		}
		for k, v := range params {
			srv.parameters[k] = v
		}
		return nil
	}
}

// WithTLS enables opportunistic TLS using the given certificates; clientAuth
// controls whether client certificates are required.
func WithTLS(certificates []tls.Certificate, clientAuth tls.ClientAuthType) OptionFn {
	return func(srv *Server) error {
		srv.tlsConfig = &tls.Config{Certificates: certificates, ClientAuth: clientAuth}
		srv.clientAuth = clientAuth
		return nil
	}
}

// WithClientCAs configures the certificate pool used to verify client
// certificates when clientAuth requires one.
func WithClientCAs(pool *x509.CertPool) OptionFn {
	return func(srv *Server) error {
		if srv.tlsConfig == nil {
			srv.tlsConfig = &tls.Config{}
		}
		srv.tlsConfig.ClientCAs = pool
		return nil
	}
}

// WithAuthStrategy sets the authentication strategy driving the startup
// exchange; defaults to auth.Trust().
func WithAuthStrategy(strategy auth.Strategy) OptionFn {
	return func(srv *Server) error {
		srv.auth = strategy
		return nil
	}
}

// WithMode declares the decode mode the server's command decoder must
// operate in. Only ModeText is supported; requesting ModeBinary fails
// construction immediately rather than being silently ignored.
func WithMode(mode Mode) OptionFn {
	return func(srv *Server) error {
		if mode == ModeBinary {
			return fmt.Errorf("pgwire: binary decode mode is not supported")
		}
		srv.mode = mode
		return nil
	}
}

// WithMaxMessageSize caps the size of a single decoded frame; exceeding it
// is a fatal session error.
func WithMaxMessageSize(n int) OptionFn {
	return func(srv *Server) error {
		srv.maxMessageSize = n
		return nil
	}
}

// WithTypeMap overrides the *pgtype.Map made available to handlers via
// TypeMap(ctx), for callers that register custom Postgres types beyond
// pgx's built-in set.
func WithTypeMap(tm *pgtype.Map) OptionFn {
	return func(srv *Server) error {
		srv.typeMap = tm
		return nil
	}
}

// SessionHandler is invoked once per connection after authentication and
// before the main command loop begins, allowing callers to stash
// session-scoped state onto ctx.
type SessionHandler func(ctx context.Context) (context.Context, error)

// WithSessionHandler overrides the default no-op SessionHandler.
func WithSessionHandler(fn SessionHandler) OptionFn {
	return func(srv *Server) error {
		srv.session = fn
		return nil
	}
}

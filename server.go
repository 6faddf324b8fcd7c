package pgwire

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hexpg/pgwire/auth"
	"github.com/hexpg/pgwire/decoder"
	"github.com/hexpg/pgwire/encoder"
	"github.com/hexpg/pgwire/message"
)

// ListenAndServe starts a Postgres-protocol server on address using a
// trust-authenticated, default-configured Server. It exists for quick
// embedding (tests, simple tools); real deployments should call NewServer
// with the OptionFns they need.
func ListenAndServe(address string, handler Handler) error {
	srv, err := NewServer(handler)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(address)
}

// NewServer constructs a Server from handler and the given options. handler
// is invoked once per decoded command with a response encoder bound to the
// same connection.
func NewServer(handler Handler, options ...OptionFn) (*Server, error) {
	srv := &Server{
		handler:        handler,
		logger:         slog.Default(),
		closer:         make(chan struct{}),
		auth:           auth.Trust(),
		mode:           ModeText,
		maxMessageSize: decoder.DefaultMaxMessageSize,
		session:        func(ctx context.Context) (context.Context, error) { return ctx, nil },
		typeMap:        pgtype.NewMap(),
	}

	for _, option := range options {
		if err := option(srv); err != nil {
			return nil, fmt.Errorf("pgwire: failed to configure server: %w", err)
		}
	}

	return srv, nil
}

// Server accepts Postgres wire-protocol connections and dispatches decoded
// commands to a Handler, driving a SessionBinder per connection.
type Server struct {
	handler        Handler
	logger         *slog.Logger
	auth           auth.Strategy
	mode           Mode
	version        string
	parameters     Parameters
	tlsConfig      *tls.Config
	clientAuth     tls.ClientAuthType
	session        SessionHandler
	maxMessageSize int
	typeMap        *pgtype.Map

	closing atomic.Bool
	closer  chan struct{}
	wg      sync.WaitGroup

	sessions sync.Map // uint32 processID -> *activeSession
}

// activeSession tracks enough state to service a CancelRequest for one
// live connection.
type activeSession struct {
	secretKey uint32
	conn      net.Conn
}

// generateBackendKeyData produces a random, currently-unused process
// ID/secret pair used to identify a session for CancelRequest.
func generateBackendKeyData(srv *Server) (processID, secretKey uint32, err error) {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, 0, err
		}
		processID = binary.BigEndian.Uint32(buf[:4])
		secretKey = binary.BigEndian.Uint32(buf[4:])
		if _, exists := srv.sessions.Load(processID); !exists {
			return processID, secretKey, nil
		}
	}
}

// ListenAndServe opens a TCP listener on address and serves it until Close
// is called.
func (srv *Server) ListenAndServe(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return srv.Serve(listener)
}

// Serve accepts connections from listener, handing each to serve in its own
// goroutine, until the listener is closed (by Close or externally).
func (srv *Server) Serve(listener net.Listener) error {
	defer srv.logger.Info("pgwire: server closed")
	srv.logger.Info("pgwire: serving connections", slog.String("addr", listener.Addr().String()))

	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		<-srv.closer
		if err := listener.Close(); err != nil {
			srv.logger.Error("pgwire: failed to close listener", slog.Any("err", err))
		}
	}()

	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			ctx := context.Background()
			if err := srv.serve(ctx, conn); err != nil {
				srv.logger.Error("pgwire: connection terminated", slog.Any("err", err))
			}
		}()
	}
}

// Close gracefully stops accepting new connections and waits for the
// in-flight ones to finish.
func (srv *Server) Close() error {
	if srv.closing.Swap(true) {
		return nil
	}
	close(srv.closer)
	srv.wg.Wait()
	return nil
}

func (srv *Server) serve(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	srv.logger.DebugContext(ctx, "pgwire: accepted connection", slog.String("remote", conn.RemoteAddr().String()))

	conn, reader, err := Handshake(ctx, conn, srv.tlsConfig, srv.clientAuth, srv.logger)
	var cancel *CancelRequest
	if errors.As(err, &cancel) {
		srv.handleCancelRequest(ctx, cancel)
		return nil
	}
	if err != nil {
		return err
	}

	binder := bindSocket(conn, srv.logger)
	dec := decoder.NewCommandDecoder(srv.logger)
	dec.SetMaxMessageSize(srv.maxMessageSize)

	cmd, _, err := decoder.ReadOneCommand(reader, dec)
	if err != nil {
		return fmt.Errorf("pgwire: failed to read startup packet: %w", err)
	}

	init, ok := cmd.(message.Init)
	if !ok {
		return fmt.Errorf("pgwire: expected startup packet, got %T", cmd)
	}

	if username := init.Options["user"]; username != "" {
		ctx = auth.WithUsername(ctx, username)
	}

	srv.logger.DebugContext(ctx, "pgwire: handshake complete, authenticating",
		slog.String("user", auth.Username(ctx)), slog.Any("options", init.Options))

	ctx, err = srv.auth(ctx, reader, dec, binder.Writer)
	if err != nil {
		_ = binder.Writer.Error(err)
		return fmt.Errorf("pgwire: authentication failed: %w", err)
	}

	if err := srv.writeParameters(ctx, binder.Writer); err != nil {
		return err
	}

	processID, secretKey, err := generateBackendKeyData(srv)
	if err != nil {
		return err
	}
	srv.sessions.Store(processID, &activeSession{secretKey: secretKey, conn: conn})
	defer srv.sessions.Delete(processID)

	if err := binder.Writer.BackendKeyData(processID, secretKey); err != nil {
		return err
	}

	if err := binder.Writer.ReadyForQuery('I'); err != nil {
		return err
	}

	ctx, err = srv.session(ctx)
	if err != nil {
		return err
	}

	ctx = contextWithTypeMap(ctx, srv.typeMap)

	return srv.consume(ctx, reader, dec, binder)
}

// handleCancelRequest closes the target session's connection if its secret
// matches, interrupting whatever blocking Read is in progress there. A
// mismatched secret is ignored, as real Postgres does.
func (srv *Server) handleCancelRequest(ctx context.Context, cancel *CancelRequest) {
	v, ok := srv.sessions.Load(cancel.ProcessID)
	if !ok {
		srv.logger.DebugContext(ctx, "pgwire: cancel request for unknown process", slog.Uint64("processID", uint64(cancel.ProcessID)))
		return
	}

	target := v.(*activeSession)
	if target.secretKey != cancel.SecretKey {
		srv.logger.WarnContext(ctx, "pgwire: cancel request secret mismatch", slog.Uint64("processID", uint64(cancel.ProcessID)))
		return
	}

	_ = target.conn.Close()
}

// writeParameters writes the standard post-authentication ParameterStatus
// messages, merging any caller-supplied overrides in srv.parameters.
func (srv *Server) writeParameters(ctx context.Context, enc *encoder.ResponseEncoder) error {
	params := Parameters{
		ParamServerEncoding:       "UTF8",
		ParamClientEncoding:       "UTF8",
		ParamIsSuperuser:          "off",
		ParamSessionAuthorization: auth.Username(ctx),
		ParamServerVersion:        "15.0",
	}
	if srv.version != "" {
		params[ParamServerVersion] = srv.version
	}
	for k, v := range srv.parameters {
		params[k] = v
	}

	for name, value := range params {
		if err := enc.ParameterStatus(name, value); err != nil {
			return err
		}
	}
	return nil
}

// consume runs the main per-connection loop: chunks are read off reader and
// fed to dec, which dispatches each decoded command to srv.handler. A
// handler error is reported to the client as an ErrorMessage followed by
// ReadyForQuery; a decoder error is fatal and tears the session down.
func (srv *Server) consume(ctx context.Context, reader netReader, dec *decoder.CommandDecoder, binder *SessionBinder) error {
	buf := make([]byte, 8192)

	handle := func(cmd message.Command, raw []byte) error {
		logCommand(ctx, srv.logger, cmd, raw)

		err := srv.invoke(ctx, cmd, raw, binder.Writer)
		if err != nil {
			if werr := binder.Writer.Error(err); werr != nil {
				return werr
			}
			return binder.Writer.ReadyForQuery('I')
		}
		return nil
	}

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if ferr := dec.Feed(buf[:n], handle); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}

// invoke recovers from a panicking Handler, converting it into an error so
// a misbehaving handler degrades one session rather than the process.
func (srv *Server) invoke(ctx context.Context, cmd message.Command, raw []byte, writer *encoder.ResponseEncoder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pgwire: handler panicked: %v", r)
		}
	}()
	return srv.handler(ctx, cmd, raw, writer)
}

// netReader is the minimal surface consume needs; satisfied by
// *bufio.Reader (the type Handshake actually returns).
type netReader interface {
	Read(p []byte) (int, error)
}

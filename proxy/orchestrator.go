package proxy

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hexpg/pgwire"
	"github.com/hexpg/pgwire/codes"
	"github.com/hexpg/pgwire/decoder"
	"github.com/hexpg/pgwire/encoder"
	pgerrors "github.com/hexpg/pgwire/errors"
	"github.com/hexpg/pgwire/message"
)

// Dialer opens a connection to the upstream Postgres server for one client
// session; it stands in for a user-provided socket factory.
type Dialer func(ctx context.Context) (net.Conn, error)

// Orchestrator proxies Postgres wire traffic: for each accepted client
// connection it dials an upstream connection, wraps the client side in a
// CommandDecoder and a plain ResponseEncoder (not a SessionBinder) and the
// upstream side in a ResponseDecoder, and forwards
// traffic between them. Simple-query commands (Parse/Query) are routed
// through QueryPolicy first.
type Orchestrator struct {
	Dial    Dialer
	Policy  QueryPolicy
	Logger  *slog.Logger
	Tracker *StatementTracker

	closing atomic.Bool
	closer  chan struct{}
	wg      sync.WaitGroup
}

// NewOrchestrator constructs an Orchestrator. policy may be nil, defaulting
// to Identity (pure passthrough — createSimpleProxy with no interceptor).
func NewOrchestrator(dial Dialer, policy QueryPolicy, logger *slog.Logger) *Orchestrator {
	if policy == nil {
		policy = Identity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Dial:    dial,
		Policy:  policy,
		Logger:  logger,
		Tracker: NewStatementTracker(),
		closer:  make(chan struct{}),
	}
}

// CreateSimpleProxy constructs a query-level interceptor proxying every
// connection to a single upstream dialer.
func CreateSimpleProxy(dial Dialer, onQuery QueryPolicy) *Orchestrator {
	return NewOrchestrator(dial, onQuery, nil)
}

// ListenAndServe opens a TCP listener on address and proxies every
// connection accepted on it.
func (o *Orchestrator) ListenAndServe(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return o.Serve(listener)
}

// Serve accepts client connections from listener and proxies each in its
// own goroutine until the listener is closed.
func (o *Orchestrator) Serve(listener net.Listener) error {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		<-o.closer
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			ctx := context.Background()
			if err := o.serveConn(ctx, conn); err != nil {
				o.Logger.ErrorContext(ctx, "pgwire: proxy session terminated", slog.Any("err", err))
			}
		}()
	}
}

// Close stops accepting connections and waits for in-flight sessions.
func (o *Orchestrator) Close() error {
	if o.closing.Swap(true) {
		return nil
	}
	close(o.closer)
	o.wg.Wait()
	return nil
}

func (o *Orchestrator) serveConn(ctx context.Context, client net.Conn) error {
	defer client.Close()

	client, reader, err := pgwire.Handshake(ctx, client, nil, 0, o.Logger)
	var cancel *pgwire.CancelRequest
	if errors.As(err, &cancel) {
		return o.forwardCancelRequest(ctx, cancel)
	}
	if err != nil {
		return err
	}

	upstream, err := o.Dial(ctx)
	if err != nil {
		return fmt.Errorf("pgwire: failed to dial upstream: %w", err)
	}
	defer upstream.Close()

	clientEnc := encoder.NewResponseEncoder(client, o.Logger)
	cmdEnc := encoder.NewCommandEncoder(upstream, o.Logger)
	cmdDec := decoder.NewCommandDecoder(o.Logger)
	respDec := decoder.NewResponseDecoder(o.Logger)

	errs := make(chan error, 2)

	go func() {
		errs <- o.relayUpstreamToClient(ctx, upstream, client, respDec)
	}()

	go func() {
		errs <- o.relayClientToUpstream(ctx, reader, upstream, cmdDec, cmdEnc, clientEnc)
	}()

	err = <-errs
	_ = client.Close()
	_ = upstream.Close()
	return err
}

// forwardCancelRequest dials a fresh upstream connection and relays the
// 16-byte CancelRequest packet, matching real Postgres's convention that
// cancellation rides on its own throwaway connection.
func (o *Orchestrator) forwardCancelRequest(ctx context.Context, cancel *pgwire.CancelRequest) error {
	upstream, err := o.Dial(ctx)
	if err != nil {
		return err
	}
	defer upstream.Close()

	var packet [16]byte
	binary.BigEndian.PutUint32(packet[0:4], 16)
	binary.BigEndian.PutUint32(packet[4:8], uint32(message.VersionCancel))
	binary.BigEndian.PutUint32(packet[8:12], cancel.ProcessID)
	binary.BigEndian.PutUint32(packet[12:16], cancel.SecretKey)

	_, err = upstream.Write(packet[:])
	return err
}

// relayClientToUpstream decodes client commands, applies the query policy
// to Parse/Query text, tracks statement/portal names, and forwards every
// command to upstream — rewritten if the policy changed it, raw otherwise.
func (o *Orchestrator) relayClientToUpstream(ctx context.Context, reader interface{ Read([]byte) (int, error) }, upstream net.Conn, cmdDec *decoder.CommandDecoder, cmdEnc *encoder.CommandEncoder, clientEnc *encoder.ResponseEncoder) error {
	buf := make([]byte, 8192)

	handle := func(cmd message.Command, raw []byte) error {
		switch c := cmd.(type) {
		case message.Parse:
			o.Tracker.RecordParse(c.QueryName, c.Query)
			return o.forwardQuery(ctx, c.Query, clientEnc, func(text string) error {
				return cmdEnc.Parse(message.Parse{QueryName: c.QueryName, Query: text, ParameterTypes: c.ParameterTypes})
			}, raw, upstream)

		case message.Query:
			return o.forwardQuery(ctx, c.Query, clientEnc, func(text string) error {
				return cmdEnc.Query(text)
			}, raw, upstream)

		case message.Bind:
			o.Tracker.RecordBind(c.Portal, c.Statement)

		case message.PortalOp:
			if c.Kind == message.PortalClose {
				o.Tracker.RecordClose(c.PortalType == message.DescribeStatement, c.Name)
			}
		}

		_, err := upstream.Write(raw)
		return err
	}

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if ferr := cmdDec.Feed(buf[:n], handle); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}

// forwardQuery applies o.Policy to text: on rejection it writes
// ErrorMessage+ReadyForQuery to the client and forwards nothing; on
// rewrite/identity it calls reserialize (which re-emits the command with
// the possibly-new text) or forwards raw verbatim when the text is
// unchanged.
func (o *Orchestrator) forwardQuery(ctx context.Context, text string, clientEnc *encoder.ResponseEncoder, reserialize func(string) error, raw []byte, upstream net.Conn) error {
	rewritten, err := o.Policy(ctx, text)
	if err != nil {
		err = pgerrors.WithCode(err, codes.InsufficientPrivilege)
		err = pgerrors.WithSeverity(err, pgerrors.LevelError)
		err = pgerrors.WithConstraintName(err, "query_policy")
		if werr := clientEnc.Error(err); werr != nil {
			return werr
		}
		return clientEnc.ReadyForQuery('I')
	}

	if rewritten == text {
		_, err := upstream.Write(raw)
		return err
	}

	return reserialize(rewritten)
}

// relayUpstreamToClient decodes upstream responses only to find frame
// boundaries; it logs and counts nothing per response, and every response
// is forwarded to the client
// verbatim, since the simple proxy never transforms results.
func (o *Orchestrator) relayUpstreamToClient(ctx context.Context, upstream net.Conn, client net.Conn, respDec *decoder.ResponseDecoder) error {
	buf := make([]byte, 8192)

	handle := func(resp message.Response, raw []byte) error {
		_, err := client.Write(raw)
		return err
	}

	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			if ferr := respDec.Feed(buf[:n], handle); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}

// Package pgwire implements the backend side of the PostgreSQL
// frontend/backend wire protocol (v3): a streaming command decoder/response
// encoder pair for serving connections, a response decoder/command encoder
// pair for proxying them, and the session/proxy orchestration built on top.
package pgwire

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"

	"github.com/hexpg/pgwire/encoder"
	"github.com/hexpg/pgwire/message"
)

var (
	sslSupported   = []byte{'S'}
	sslUnsupported = []byte{'N'}
)

// Handshake peeks the connection's startup version without consuming the
// real (v3) startup packet — that packet is left for the CommandDecoder to
// parse as an Init command. SSLRequest, GSSENCRequest, and cancel-request
// preambles are fully consumed here, since they are not part of the typed
// command model and TLS negotiation itself sits outside the codec.
//
// The returned io.Reader must be used for all further reads on conn: it may
// have buffered bytes (the peeked header) that a raw conn.Read would skip.
func Handshake(ctx context.Context, conn net.Conn, tlsConfig *tls.Config, clientAuth tls.ClientAuthType, logger *slog.Logger) (net.Conn, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)

	for {
		header, err := reader.Peek(8)
		if err != nil {
			return conn, reader, fmt.Errorf("pgwire: failed to read startup header: %w", err)
		}

		version := message.Version(binary.BigEndian.Uint32(header[4:8]))

		switch version {
		case message.VersionSSLRequest:
			if _, err := reader.Discard(8); err != nil {
				return conn, reader, err
			}

			conn, reader, err = negotiateTLS(conn, tlsConfig, clientAuth, logger)
			if err != nil {
				return conn, reader, err
			}
			continue

		case message.VersionGSSENC:
			if _, err := reader.Discard(8); err != nil {
				return conn, reader, err
			}
			if _, err := conn.Write(sslUnsupported); err != nil {
				return conn, reader, err
			}
			continue

		case message.VersionCancel:
			if _, err := reader.Discard(8); err != nil {
				return conn, reader, err
			}
			var body [8]byte
			if _, err := readFull(reader, body[:]); err != nil {
				return conn, reader, err
			}
			cancel := &CancelRequest{
				ProcessID: binary.BigEndian.Uint32(body[:4]),
				SecretKey: binary.BigEndian.Uint32(body[4:8]),
			}
			logger.DebugContext(ctx, "received cancel request", slog.Uint64("processID", uint64(cancel.ProcessID)))
			return conn, reader, cancel

		default:
			return conn, reader, nil
		}
	}
}

// CancelRequest is returned by Handshake instead of a nil error when the
// connection turned out to carry a CancelRequest preamble rather than a
// real startup packet. It is not an error in the usual sense: the caller
// should use ProcessID/SecretKey to look up and interrupt the target
// session, then close this (now useless) connection.
type CancelRequest struct {
	ProcessID uint32
	SecretKey uint32
}

func (c *CancelRequest) Error() string {
	return fmt.Sprintf("pgwire: cancel request for process %d", c.ProcessID)
}

func readFull(reader *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := reader.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func negotiateTLS(conn net.Conn, tlsConfig *tls.Config, clientAuth tls.ClientAuthType, logger *slog.Logger) (net.Conn, *bufio.Reader, error) {
	if tlsConfig == nil || len(tlsConfig.Certificates) == 0 {
		if clientAuth == tls.RequireAndVerifyClientCert {
			return conn, bufio.NewReader(conn), fmt.Errorf("pgwire: client requested plaintext but server mandates TLS")
		}
		if _, err := conn.Write(sslUnsupported); err != nil {
			return conn, bufio.NewReader(conn), err
		}
		return conn, bufio.NewReader(conn), nil
	}

	if _, err := conn.Write(sslSupported); err != nil {
		return conn, bufio.NewReader(conn), err
	}

	upgraded := tls.Server(conn, tlsConfig)
	logger.Debug("upgraded connection to TLS")
	return upgraded, bufio.NewReader(upgraded), nil
}

// SessionBinder holds the ResponseEncoder bound to a client socket. It does
// no decoding or dispatch itself: Server.serve builds the CommandDecoder and
// Server.consume hands each decoded command to the Handler. It does not
// perform handshake or authentication either — Server.serve binds the
// socket right after Handshake, so the startup exchange and the chosen
// auth.Strategy reply through Writer.
type SessionBinder struct {
	Writer *encoder.ResponseEncoder
}

// Handler is invoked once per decoded command, with the response encoder
// bound to the same connection so it can reply.
type Handler func(ctx context.Context, cmd message.Command, raw []byte, writer *encoder.ResponseEncoder) error

// bindSocket disables Nagle's algorithm (so responses are flushed with low
// latency, matching interactive query/response traffic) and returns a
// SessionBinder whose Writer encodes responses onto conn.
func bindSocket(conn net.Conn, logger *slog.Logger) *SessionBinder {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	return &SessionBinder{Writer: encoder.NewResponseEncoder(conn, logger)}
}

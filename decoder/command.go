// Package decoder implements the two streaming reassembly codecs: the
// CommandDecoder reads frontend-to-backend traffic, the ResponseDecoder
// reads backend-to-frontend traffic (used by the proxy's upstream leg).
// Both are fed arbitrarily-sized byte chunks and invoke a callback once
// per fully-buffered frame, never blocking and never assuming a frame
// boundary aligns with a chunk boundary.
package decoder

import (
	"encoding/binary"
	"log/slog"

	"github.com/hexpg/pgwire/buffer"
	"github.com/hexpg/pgwire/message"
)

// CommandHandler is invoked once per decoded frontend command. raw is the
// exact bytes (including the type code and length header, or the whole
// unframed startup packet for Init) that produced cmd. raw is a borrow
// into the decoder's rolling buffer and is only valid until the next call
// to Feed; handlers that need it beyond that must copy it first.
type CommandHandler func(cmd message.Command, raw []byte) error

// CommandDecoder reassembles and parses frontend (client-to-backend)
// messages from a stream of arbitrarily-chunked bytes.
type CommandDecoder struct {
	logger         *slog.Logger
	fb             frameBuffer
	startedUp      bool
	maxMessageSize int
}

// DefaultMaxMessageSize bounds a single frame body, guarding against a
// malicious or buggy peer declaring an unbounded length.
const DefaultMaxMessageSize = 64 << 20 // 64MiB

// NewCommandDecoder constructs a CommandDecoder. logger may be nil.
func NewCommandDecoder(logger *slog.Logger) *CommandDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandDecoder{logger: logger, maxMessageSize: DefaultMaxMessageSize}
}

// StartedUp reports whether the one-shot startup packet has been consumed.
func (d *CommandDecoder) StartedUp() bool {
	return d.startedUp
}

// SetMaxMessageSize overrides DefaultMaxMessageSize.
func (d *CommandDecoder) SetMaxMessageSize(n int) {
	d.maxMessageSize = n
}

// Feed appends chunk to the rolling buffer and synchronously dispatches
// handle for every fully-buffered command found. Feed returns as soon as
// the buffer holds only a partial frame, or immediately on a fatal
// protocol violation or a handler error.
func (d *CommandDecoder) Feed(chunk []byte, handle CommandHandler) error {
	d.fb.append(chunk)

	for {
		if !d.startedUp {
			consumed, err := d.tryStartup(handle)
			if err != nil {
				if err == ErrStop {
					return nil
				}
				return err
			}
			if !consumed {
				return nil
			}
			continue
		}

		live := d.fb.live()
		if len(live) < 5 {
			return nil
		}

		length := int(binary.BigEndian.Uint32(live[1:5]))
		if length < 4 {
			return fatalf("frame declares length %d, must be at least 4", length)
		}
		if length-4 > d.maxMessageSize {
			return fatalf("frame body of %d bytes exceeds maximum message size %d", length-4, d.maxMessageSize)
		}

		total := 1 + length
		if len(live) < total {
			return nil
		}

		code := message.ClientMessage(live[0])
		body := live[5:total]
		raw := live[:total]

		cmd, err := parseCommandBody(code, body)
		if err != nil {
			return err
		}

		d.fb.advance(total)

		if err := handle(cmd, raw); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

// tryStartup attempts to parse the unframed startup packet. It returns
// consumed=false when more bytes are needed.
func (d *CommandDecoder) tryStartup(handle CommandHandler) (bool, error) {
	live := d.fb.live()
	if len(live) < 4 {
		return false, nil
	}

	length := int(binary.BigEndian.Uint32(live[:4]))
	if length < 8 {
		return false, fatalf("startup packet declares length %d, must be at least 8", length)
	}
	if length > d.maxMessageSize {
		return false, fatalf("startup packet of %d bytes exceeds maximum message size %d", length, d.maxMessageSize)
	}
	if len(live) < length {
		return false, nil
	}

	raw := live[:length]
	r := buffer.NewReader(raw[4:])

	version, err := r.Uint32()
	if err != nil {
		return false, fatalf("short startup packet: %v", err)
	}
	major := message.Version(version).Major()
	if major != 3 {
		return false, fatalf("unsupported startup protocol major version %d", major)
	}

	options := map[string]string{}
	for {
		key, err := r.CString()
		if err != nil {
			return false, fatalf("malformed startup option key: %v", err)
		}
		if key == "" {
			break
		}
		value, err := r.CString()
		if err != nil {
			return false, fatalf("malformed startup option value: %v", err)
		}
		options[key] = value
	}

	cmd := message.Init{
		Major:   message.Version(version).Major(),
		Minor:   message.Version(version).Minor(),
		Options: options,
	}

	d.startedUp = true
	d.fb.advance(length)

	if err := handle(cmd, raw); err != nil {
		// The frame is already consumed regardless of outcome; propagate
		// ErrStop to the caller (Feed) rather than swallowing it here, or a
		// command pipelined into the same chunk as the startup packet would
		// be decoded and silently dropped instead of left for the next read.
		return true, err
	}

	return true, nil
}

// parseCommandBody dispatches on code to the per-type parser for each
// frontend message.
func parseCommandBody(code message.ClientMessage, body []byte) (message.Command, error) {
	r := buffer.NewReader(body)

	switch code {
	case message.ClientSimpleQuery:
		query, err := r.CString()
		if err != nil {
			return nil, fatalf("malformed Query: %v", err)
		}
		return message.Query{Query: query}, nil

	case message.ClientCopyFail:
		msg, err := r.CString()
		if err != nil {
			return nil, fatalf("malformed CopyFail: %v", err)
		}
		return message.CopyFail{Message: msg}, nil

	case message.ClientExecute:
		portal, err := r.CString()
		if err != nil {
			return nil, fatalf("malformed Execute: %v", err)
		}
		rows, err := r.Uint32()
		if err != nil {
			return nil, fatalf("malformed Execute row limit: %v", err)
		}
		return message.Execute{Portal: portal, Rows: rows}, nil

	case message.ClientParse:
		return parseParse(r)

	case message.ClientBind:
		return parseBind(r)

	case message.ClientDescribe:
		return parsePortalOp(r, message.PortalDescribe)

	case message.ClientClose:
		return parsePortalOp(r, message.PortalClose)

	case message.ClientPassword:
		resp, err := r.CString()
		if err != nil {
			return nil, fatalf("malformed password response: %v", err)
		}
		return message.StartupMd5{Response: resp}, nil

	case message.ClientCopyData:
		return message.CopyFromChunk{Buffer: body}, nil

	case message.ClientFlush:
		return message.CodeOnly{Kind: message.CodeFlush}, nil
	case message.ClientSync:
		return message.CodeOnly{Kind: message.CodeSync}, nil
	case message.ClientTerminate:
		return message.CodeOnly{Kind: message.CodeEnd}, nil
	case message.ClientCopyDone:
		return message.CodeOnly{Kind: message.CodeCopyDone}, nil

	default:
		return nil, fatalf("unknown frontend message type %q (0x%02x)", rune(code), byte(code))
	}
}

func parseParse(r *buffer.Reader) (message.Command, error) {
	name, err := r.CString()
	if err != nil {
		return nil, fatalf("malformed Parse statement name: %v", err)
	}
	query, err := r.CString()
	if err != nil {
		return nil, fatalf("malformed Parse query text: %v", err)
	}
	count, err := r.Uint16()
	if err != nil {
		return nil, fatalf("malformed Parse parameter count: %v", err)
	}

	types := make([]uint32, count)
	for i := range types {
		oid, err := r.Uint32()
		if err != nil {
			return nil, fatalf("malformed Parse parameter type %d: %v", i, err)
		}
		types[i] = oid
	}

	return message.Parse{QueryName: name, Query: query, ParameterTypes: types}, nil
}

func parseBind(r *buffer.Reader) (message.Command, error) {
	portal, err := r.CString()
	if err != nil {
		return nil, fatalf("malformed Bind portal name: %v", err)
	}
	statement, err := r.CString()
	if err != nil {
		return nil, fatalf("malformed Bind statement name: %v", err)
	}

	// The number-of-parameter-format-codes field is read and discarded; see
	// DESIGN.md's note on the Bind format-code open question. Every value
	// instead carries its own format code inline, which this decoder honors.
	if _, err := r.Uint16(); err != nil {
		return nil, fatalf("malformed Bind format code count: %v", err)
	}

	n, err := r.Uint16()
	if err != nil {
		return nil, fatalf("malformed Bind value count: %v", err)
	}

	values := make([]message.Value, n)
	for i := range values {
		kind, err := r.Int16()
		if err != nil {
			return nil, fatalf("malformed Bind value %d kind: %v", i, err)
		}
		length, err := r.Int32()
		if err != nil {
			return nil, fatalf("malformed Bind value %d length: %v", i, err)
		}

		format := message.TextFormat
		if kind == int16(message.BinaryFormat) {
			format = message.BinaryFormat
		}

		if length == -1 {
			values[i] = message.NewNullValue(format)
			continue
		}

		raw, err := r.Bytes(int(length))
		if err != nil {
			return nil, fatalf("malformed Bind value %d body: %v", i, err)
		}

		if format == message.BinaryFormat {
			values[i] = message.NewBinaryValue(raw)
		} else {
			values[i] = message.NewTextValue(string(raw))
		}
	}

	binaryFormat, err := r.Int16()
	if err != nil {
		return nil, fatalf("malformed Bind result format: %v", err)
	}

	return message.Bind{Portal: portal, Statement: statement, Values: values, Binary: binaryFormat == int16(message.BinaryFormat)}, nil
}

func parsePortalOp(r *buffer.Reader, kind message.PortalKind) (message.Command, error) {
	prefixed, err := r.CString()
	if err != nil {
		return nil, fatalf("malformed portal operation name: %v", err)
	}
	if prefixed == "" {
		return nil, fatalf("empty portal operation prefix")
	}

	portalType := message.DescribeMessage(prefixed[0])
	if portalType != message.DescribePortal && portalType != message.DescribeStatement {
		return nil, fatalf("unrecognized portal operation prefix %q", prefixed[0])
	}

	return message.PortalOp{Kind: kind, PortalType: portalType, Name: prefixed[1:]}, nil
}

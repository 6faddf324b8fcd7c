package encoder

import (
	"io"
	"log/slog"
	"sync"

	"github.com/hexpg/pgwire/buffer"
	"github.com/hexpg/pgwire/message"
)

// CommandEncoder serializes frontend messages. It is only exercised by the
// proxy's query-rewrite path: when onQuery returns a new SQL text, the
// proxy reserializes a Query/Parse command with that text rather than
// forwarding the original raw bytes.
type CommandEncoder struct {
	mu     sync.Mutex
	out    io.Writer
	frame  buffer.Writer
	logger *slog.Logger
}

// NewCommandEncoder constructs a CommandEncoder writing to out.
func NewCommandEncoder(out io.Writer, logger *slog.Logger) *CommandEncoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandEncoder{out: out, logger: logger}
}

func (e *CommandEncoder) write(code message.ClientMessage, build func(w *buffer.Writer)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.frame.Start()
	build(&e.frame)
	raw, err := e.frame.Flush(byte(code))
	if err != nil {
		return err
	}

	e.logger.Debug("-> writing command", slog.String("type", code.String()))
	_, err = e.out.Write(raw)
	return err
}

func (e *CommandEncoder) Query(query string) error {
	return e.write(message.ClientSimpleQuery, func(w *buffer.Writer) {
		w.WriteCString(query)
	})
}

func (e *CommandEncoder) Parse(cmd message.Parse) error {
	return e.write(message.ClientParse, func(w *buffer.Writer) {
		w.WriteCString(cmd.QueryName)
		w.WriteCString(cmd.Query)
		w.WriteUint16(uint16(len(cmd.ParameterTypes)))
		for _, oid := range cmd.ParameterTypes {
			w.WriteUint32(oid)
		}
	})
}

func (e *CommandEncoder) Bind(cmd message.Bind) error {
	return e.write(message.ClientBind, func(w *buffer.Writer) {
		w.WriteCString(cmd.Portal)
		w.WriteCString(cmd.Statement)
		w.WriteUint16(0) // format code count; this codec always sends per-value kinds.
		w.WriteUint16(uint16(len(cmd.Values)))
		for _, v := range cmd.Values {
			w.WriteInt16(int16(v.Format))
			switch {
			case v.Null:
				w.WriteInt32(-1)
			case v.Format == message.BinaryFormat:
				w.WriteInt32(int32(len(v.Binary)))
				w.WriteRaw(v.Binary)
			default:
				w.WriteInt32(int32(len(v.Text)))
				w.WriteString(v.Text)
			}
		}
		if cmd.Binary {
			w.WriteInt16(int16(message.BinaryFormat))
		} else {
			w.WriteInt16(int16(message.TextFormat))
		}
	})
}

func (e *CommandEncoder) Execute(cmd message.Execute) error {
	return e.write(message.ClientExecute, func(w *buffer.Writer) {
		w.WriteCString(cmd.Portal)
		w.WriteUint32(cmd.Rows)
	})
}

func (e *CommandEncoder) PortalOp(cmd message.PortalOp) error {
	return e.write(cmd.Code(), func(w *buffer.Writer) {
		w.WriteByte(byte(cmd.PortalType))
		w.WriteCString(cmd.Name)
	})
}

func (e *CommandEncoder) CopyFail(reason string) error {
	return e.write(message.ClientCopyFail, func(w *buffer.Writer) {
		w.WriteCString(reason)
	})
}

func (e *CommandEncoder) CopyData(chunk []byte) error {
	return e.write(message.ClientCopyData, func(w *buffer.Writer) {
		w.WriteRaw(chunk)
	})
}

// Code writes a code-only command: Flush, Sync, Terminate, or CopyDone.
func (e *CommandEncoder) Code(cmd message.CodeOnly) error {
	return e.write(cmd.Code(), func(*buffer.Writer) {})
}

// Package encoder implements the two serialization codecs: the
// ResponseEncoder writes backend-to-frontend messages, the CommandEncoder
// writes frontend-to-backend messages (used by the proxy to re-serialize
// a rewritten command before forwarding it upstream).
package encoder

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hexpg/pgwire/buffer"
	"github.com/hexpg/pgwire/errors"
	"github.com/hexpg/pgwire/message"
)

// ResponseEncoder serializes backend messages and writes them to the
// underlying socket. All methods return synchronously once the bytes have
// been handed to the stream; there is no internal queueing beyond the
// frame buffer itself.
type ResponseEncoder struct {
	mu     sync.Mutex
	out    io.Writer
	frame  buffer.Writer
	logger *slog.Logger
}

// NewResponseEncoder constructs a ResponseEncoder writing to out.
func NewResponseEncoder(out io.Writer, logger *slog.Logger) *ResponseEncoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseEncoder{out: out, logger: logger}
}

func (e *ResponseEncoder) write(code message.ServerMessage, build func(w *buffer.Writer)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.frame.Start()
	build(&e.frame)
	raw, err := e.frame.Flush(byte(code))
	if err != nil {
		return err
	}

	e.logger.Debug("-> writing response", slog.String("type", code.String()))
	_, err = e.out.Write(raw)
	return err
}

// Code writes a code-only response: no body beyond the frame header.
func (e *ResponseEncoder) Code(kind message.ServerCodeOnly) error {
	return e.write(kind.Code(), func(*buffer.Writer) {})
}

func (e *ResponseEncoder) ReadyForQuery(status byte) error {
	return e.write(message.ServerReady, func(w *buffer.Writer) {
		w.WriteByte(status)
	})
}

func (e *ResponseEncoder) CommandComplete(text string) error {
	return e.write(message.ServerCommandComplete, func(w *buffer.Writer) {
		w.WriteCString(text)
	})
}

// DataRow writes a row. A nil entry represents SQL NULL, encoded on the
// wire as a -1 length with no body.
func (e *ResponseEncoder) DataRow(fields []*string) error {
	return e.write(message.ServerDataRow, func(w *buffer.Writer) {
		w.WriteUint16(uint16(len(fields)))
		for _, f := range fields {
			if f == nil {
				w.WriteInt32(-1)
				continue
			}
			w.WriteInt32(int32(len(*f)))
			w.WriteString(*f)
		}
	})
}

func (e *ResponseEncoder) RowDescription(fields []message.FieldDesc) error {
	return e.write(message.ServerRowDescription, func(w *buffer.Writer) {
		w.WriteUint16(uint16(len(fields)))
		for _, f := range fields {
			w.WriteCString(f.Name)
			w.WriteUint32(f.TableID)
			w.WriteUint16(f.ColumnID)
			w.WriteUint32(f.DataTypeID)
			w.WriteUint16(f.DataTypeSize)
			w.WriteUint32(f.DataTypeModifier)
			w.WriteInt16(int16(f.Mode))
		}
	})
}

func (e *ResponseEncoder) ParameterStatus(name, value string) error {
	return e.write(message.ServerParameterStatus, func(w *buffer.Writer) {
		w.WriteCString(name)
		w.WriteCString(value)
	})
}

func (e *ResponseEncoder) BackendKeyData(processID, secretKey uint32) error {
	return e.write(message.ServerBackendKeyData, func(w *buffer.Writer) {
		w.WriteUint32(processID)
		w.WriteUint32(secretKey)
	})
}

func (e *ResponseEncoder) NotificationResponse(processID uint32, channel, payload string) error {
	return e.write(message.ServerNotificationResponse, func(w *buffer.Writer) {
		w.WriteUint32(processID)
		w.WriteCString(channel)
		w.WriteCString(payload)
	})
}

func (e *ResponseEncoder) AuthenticationOk() error {
	return e.writeAuth(message.AuthOk, func(*buffer.Writer) {})
}

func (e *ResponseEncoder) AuthenticationCleartextPassword() error {
	return e.writeAuth(message.AuthCleartextPassword, func(*buffer.Writer) {})
}

func (e *ResponseEncoder) AuthenticationMD5Password(salt [4]byte) error {
	return e.writeAuth(message.AuthMd5Password, func(w *buffer.Writer) {
		w.WriteRaw(salt[:])
	})
}

func (e *ResponseEncoder) AuthenticationSASL(mechanisms []string) error {
	return e.writeAuth(message.AuthSASL, func(w *buffer.Writer) {
		for _, m := range mechanisms {
			w.WriteCString(m)
		}
		w.WriteByte(0)
	})
}

func (e *ResponseEncoder) AuthenticationSASLContinue(data []byte) error {
	return e.writeAuth(message.AuthSASLContinue, func(w *buffer.Writer) {
		w.WriteRaw(data)
	})
}

func (e *ResponseEncoder) AuthenticationSASLFinal(data []byte) error {
	return e.writeAuth(message.AuthSASLFinal, func(w *buffer.Writer) {
		w.WriteRaw(data)
	})
}

func (e *ResponseEncoder) writeAuth(kind message.AuthKind, build func(w *buffer.Writer)) error {
	return e.write(message.ServerAuth, func(w *buffer.Writer) {
		w.WriteInt32(int32(kind))
		build(w)
	})
}

// Notice writes a NoticeResponse. v may be a message.NoticeOrError, a
// plain string (treated as {message: v}), or an arbitrary error (rendered
// into the message field via errors.Flatten).
func (e *ResponseEncoder) Notice(v any) error {
	fields := toNoticeFields(v)
	return e.write(message.ServerNoticeResponse, func(w *buffer.Writer) {
		fields.WriteFields(w)
	})
}

// Error writes an ErrorResponse; see Notice for the accepted shapes of v.
func (e *ResponseEncoder) Error(v any) error {
	fields := toNoticeFields(v)
	return e.write(message.ServerErrorResponse, func(w *buffer.Writer) {
		fields.WriteFields(w)
	})
}

func toNoticeFields(v any) message.NoticeOrError {
	switch t := v.(type) {
	case message.NoticeOrError:
		return t
	case string:
		return message.NoticeOrError{Severity: string(errors.LevelError), Message: t}
	case error:
		flat := errors.Flatten(t)
		return message.NoticeOrError{
			Severity:         string(flat.Severity),
			Code:             string(flat.Code),
			Message:          flat.Message,
			Detail:           flat.Detail,
			Hint:             flat.Hint,
			ConstraintName:   flat.ConstraintName,
			Position:         flat.Position,
			InternalPosition: flat.InternalPosition,
			InternalQuery:    flat.InternalQuery,
			Where:            flat.Where,
			Schema:           flat.Schema,
			Table:            flat.Table,
			Column:           flat.Column,
			DataTypeName:     flat.DataTypeName,
			Routine:          flat.Routine,
		}
	default:
		return message.NoticeOrError{Severity: string(errors.LevelError), Message: fmt.Sprintf("%v", t)}
	}
}

func (e *ResponseEncoder) CopyInResponse(isBinary bool, columnTypes []uint16) error {
	return e.write(message.ServerCopyInResponse, func(w *buffer.Writer) {
		writeCopyBody(w, isBinary, columnTypes)
	})
}

func (e *ResponseEncoder) CopyOutResponse(isBinary bool, columnTypes []uint16) error {
	return e.write(message.ServerCopyOutResponse, func(w *buffer.Writer) {
		writeCopyBody(w, isBinary, columnTypes)
	})
}

func writeCopyBody(w *buffer.Writer, isBinary bool, columnTypes []uint16) {
	if isBinary {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
	w.WriteUint16(uint16(len(columnTypes)))
	for _, t := range columnTypes {
		w.WriteUint16(t)
	}
}

// CopyData forwards one opaque COPY chunk unmodified.
func (e *ResponseEncoder) CopyData(data []byte) error {
	return e.write(message.ServerCopyData, func(w *buffer.Writer) {
		w.WriteRaw(data)
	})
}

package decoder

import (
	"encoding/binary"
	"log/slog"

	"github.com/hexpg/pgwire/buffer"
	"github.com/hexpg/pgwire/message"
)

// ResponseHandler is invoked once per decoded backend response; raw
// follows the same borrow-until-next-Feed-call contract as CommandHandler.
type ResponseHandler func(resp message.Response, raw []byte) error

// ResponseDecoder reassembles and parses backend (server-to-client)
// messages. It is used only by the proxy, on the upstream leg, so it can
// re-serialize or passively forward server traffic; it mirrors
// CommandDecoder's reassembly algorithm exactly.
type ResponseDecoder struct {
	logger         *slog.Logger
	fb             frameBuffer
	maxMessageSize int
}

// NewResponseDecoder constructs a ResponseDecoder. logger may be nil.
func NewResponseDecoder(logger *slog.Logger) *ResponseDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseDecoder{logger: logger, maxMessageSize: DefaultMaxMessageSize}
}

// SetMaxMessageSize overrides DefaultMaxMessageSize.
func (d *ResponseDecoder) SetMaxMessageSize(n int) {
	d.maxMessageSize = n
}

// Feed appends chunk to the rolling buffer and dispatches handle for every
// fully-buffered response found.
func (d *ResponseDecoder) Feed(chunk []byte, handle ResponseHandler) error {
	d.fb.append(chunk)

	for {
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

		code := message.ServerMessage(live[0])
		body := live[5:total]
		raw := live[:total]

		resp, err := parseResponseBody(code, body)
		if err != nil {
			return err
		}

		d.fb.advance(total)

		if err := handle(resp, raw); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func parseResponseBody(code message.ServerMessage, body []byte) (message.Response, error) {
	r := buffer.NewReader(body)

	switch code {
	case message.ServerReady:
		status, err := r.Byte()
		if err != nil {
			return nil, fatalf("malformed ReadyForQuery: %v", err)
		}
		return message.ReadyForQuery{Status: status}, nil

	case message.ServerCommandComplete:
		text, err := r.CString()
		if err != nil {
			return nil, fatalf("malformed CommandComplete: %v", err)
		}
		return message.CommandComplete{Text: text}, nil

	case message.ServerDataRow:
		return parseDataRow(r)

	case message.ServerRowDescription:
		return parseRowDescription(r)

	case message.ServerParameterStatus:
		name, err := r.CString()
		if err != nil {
			return nil, fatalf("malformed ParameterStatus name: %v", err)
		}
		value, err := r.CString()
		if err != nil {
			return nil, fatalf("malformed ParameterStatus value: %v", err)
		}
		return message.ParameterStatus{Name: name, Value: value}, nil

	case message.ServerBackendKeyData:
		pid, err := r.Uint32()
		if err != nil {
			return nil, fatalf("malformed BackendKeyData process id: %v", err)
		}
		secret, err := r.Uint32()
		if err != nil {
			return nil, fatalf("malformed BackendKeyData secret key: %v", err)
		}
		return message.BackendKeyData{ProcessID: pid, SecretKey: secret}, nil

	case message.ServerNotificationResponse:
		pid, err := r.Uint32()
		if err != nil {
			return nil, fatalf("malformed NotificationResponse process id: %v", err)
		}
		channel, err := r.CString()
		if err != nil {
			return nil, fatalf("malformed NotificationResponse channel: %v", err)
		}
		payload, err := r.CString()
		if err != nil {
			return nil, fatalf("malformed NotificationResponse payload: %v", err)
		}
		return message.NotificationResponse{ProcessID: pid, Channel: channel, Payload: payload}, nil

	case message.ServerAuth:
		return parseAuthentication(body, r)

	case message.ServerNoticeResponse:
		fields, err := parseNoticeFields(r)
		if err != nil {
			return nil, fatalf("malformed NoticeResponse: %v", err)
		}
		return message.NoticeResponse{Fields: fields}, nil

	case message.ServerErrorResponse:
		fields, err := parseNoticeFields(r)
		if err != nil {
			return nil, fatalf("malformed ErrorResponse: %v", err)
		}
		return message.ErrorResponse{Fields: fields}, nil

	case message.ServerCopyInResponse:
		isBinary, columnTypes, err := parseCopyResponse(r)
		if err != nil {
			return nil, fatalf("malformed CopyInResponse: %v", err)
		}
		return message.CopyInResponse{IsBinary: isBinary, ColumnTypes: columnTypes}, nil

	case message.ServerCopyOutResponse:
		isBinary, columnTypes, err := parseCopyResponse(r)
		if err != nil {
			return nil, fatalf("malformed CopyOutResponse: %v", err)
		}
		return message.CopyOutResponse{IsBinary: isBinary, ColumnTypes: columnTypes}, nil

	case message.ServerCopyData:
		return message.CopyData{Data: body}, nil

	case message.ServerBindComplete:
		return message.ServerCodeOnly{Kind: message.CodeBindComplete}, nil
	case message.ServerParseComplete:
		return message.ServerCodeOnly{Kind: message.CodeParseComplete}, nil
	case message.ServerCloseComplete:
		return message.ServerCodeOnly{Kind: message.CodeCloseComplete}, nil
	case message.ServerNoData:
		return message.ServerCodeOnly{Kind: message.CodeNoData}, nil
	case message.ServerPortalSuspended:
		return message.ServerCodeOnly{Kind: message.CodePortalSuspended}, nil
	case message.ServerCopyDone:
		return message.ServerCodeOnly{Kind: message.CodeCopyDone}, nil
	case message.ServerReplicationStart:
		return message.ServerCodeOnly{Kind: message.CodeReplicationStart}, nil
	case message.ServerEmptyQuery:
		return message.ServerCodeOnly{Kind: message.CodeEmptyQuery}, nil

	default:
		return nil, fatalf("unknown backend message type %q (0x%02x)", rune(code), byte(code))
	}
}

func parseDataRow(r *buffer.Reader) (message.Response, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, fatalf("malformed DataRow field count: %v", err)
	}

	fields := make([]*string, n)
	for i := range fields {
		length, err := r.Int32()
		if err != nil {
			return nil, fatalf("malformed DataRow field %d length: %v", i, err)
		}
		if length == -1 {
			continue
		}
		raw, err := r.Bytes(int(length))
		if err != nil {
			return nil, fatalf("malformed DataRow field %d body: %v", i, err)
		}
		value := string(raw)
		fields[i] = &value
	}

	return message.DataRow{Fields: fields}, nil
}

func parseRowDescription(r *buffer.Reader) (message.Response, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, fatalf("malformed RowDescription field count: %v", err)
	}

	fields := make([]message.FieldDesc, n)
	for i := range fields {
		name, err := r.CString()
		if err != nil {
			return nil, fatalf("malformed RowDescription field %d name: %v", i, err)
		}
		tableID, err := r.Uint32()
		if err != nil {
			return nil, fatalf("malformed RowDescription field %d table id: %v", i, err)
		}
		columnID, err := r.Uint16()
		if err != nil {
			return nil, fatalf("malformed RowDescription field %d column id: %v", i, err)
		}
		dataTypeID, err := r.Uint32()
		if err != nil {
			return nil, fatalf("malformed RowDescription field %d data type id: %v", i, err)
		}
		dataTypeSize, err := r.Uint16()
		if err != nil {
			return nil, fatalf("malformed RowDescription field %d data type size: %v", i, err)
		}
		dataTypeModifier, err := r.Uint32()
		if err != nil {
			return nil, fatalf("malformed RowDescription field %d data type modifier: %v", i, err)
		}
		mode, err := r.Int16()
		if err != nil {
			return nil, fatalf("malformed RowDescription field %d format code: %v", i, err)
		}

		format := message.TextFormat
		if mode != 0 {
			format = message.BinaryFormat
		}

		fields[i] = message.FieldDesc{
			Name:             name,
			TableID:          tableID,
			ColumnID:         columnID,
			DataTypeID:       dataTypeID,
			DataTypeSize:     dataTypeSize,
			DataTypeModifier: dataTypeModifier,
			Mode:             format,
		}
	}

	return message.RowDescription{Fields: fields}, nil
}

func parseNoticeFields(r *buffer.Reader) (message.NoticeOrError, error) {
	var fields message.NoticeOrError
	for {
		tag, err := r.Byte()
		if err != nil {
			return fields, err
		}
		if tag == 0 {
			return fields, nil
		}
		value, err := r.CString()
		if err != nil {
			return fields, err
		}
		fields.SetField(tag, value)
	}
}

func parseCopyResponse(r *buffer.Reader) (bool, []uint16, error) {
	format, err := r.Byte()
	if err != nil {
		return false, nil, err
	}
	n, err := r.Uint16()
	if err != nil {
		return false, nil, err
	}

	columns := make([]uint16, n)
	for i := range columns {
		columns[i], err = r.Uint16()
		if err != nil {
			return false, nil, err
		}
	}

	return format != 0, columns, nil
}

// parseAuthentication dispatches on the leading subcode. Subcodes 3 and 5
// fall back to Ok when the frame length doesn't match what that subcode
// expects, a deliberate compatibility relaxation.
func parseAuthentication(body []byte, r *buffer.Reader) (message.Response, error) {
	subcode, err := r.Int32()
	if err != nil {
		return nil, fatalf("malformed Authentication subcode: %v", err)
	}

	switch message.AuthKind(subcode) {
	case message.AuthCleartextPassword:
		if len(body) != 4 {
			return message.Authentication{Kind: message.AuthOk}, nil
		}
		return message.Authentication{Kind: message.AuthCleartextPassword}, nil

	case message.AuthMd5Password:
		if len(body) != 8 {
			return message.Authentication{Kind: message.AuthOk}, nil
		}
		salt, err := r.Bytes(4)
		if err != nil {
			return message.Authentication{Kind: message.AuthOk}, nil
		}
		var s [4]byte
		copy(s[:], salt)
		return message.Authentication{Kind: message.AuthMd5Password, Salt: s}, nil

	case message.AuthSASL:
		var mechanisms []string
		for {
			m, err := r.CString()
			if err != nil {
				return nil, fatalf("malformed Authentication SASL mechanism list: %v", err)
			}
			if m == "" {
				break
			}
			mechanisms = append(mechanisms, m)
		}
		return message.Authentication{Kind: message.AuthSASL, Mechanisms: mechanisms}, nil

	case message.AuthSASLContinue:
		rest, _ := r.Bytes(r.Len())
		return message.Authentication{Kind: message.AuthSASLContinue, SASLData: rest}, nil

	case message.AuthSASLFinal:
		rest, _ := r.Bytes(r.Len())
		return message.Authentication{Kind: message.AuthSASLFinal, SASLData: rest}, nil

	default:
		return message.Authentication{Kind: message.AuthOk}, nil
	}
}

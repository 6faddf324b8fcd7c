package message

import "strconv"

// noticeFieldTag is the single-byte tag prefixing each field of an
// ErrorResponse/NoticeResponse wire message. Both the decoder and the
// encoder key off this table exclusively, so the wire tag alphabet never
// drifts between the read and write paths.
//
// https://www.postgresql.org/docs/current/protocol-error-fields.html
type noticeFieldTag byte

const (
	tagSeverity         noticeFieldTag = 'S'
	tagCode             noticeFieldTag = 'C'
	tagMessage          noticeFieldTag = 'M'
	tagDetail           noticeFieldTag = 'D'
	tagHint             noticeFieldTag = 'H'
	tagPosition         noticeFieldTag = 'P'
	tagInternalPosition noticeFieldTag = 'p'
	tagInternalQuery    noticeFieldTag = 'q'
	tagWhere            noticeFieldTag = 'W'
	tagSchema           noticeFieldTag = 's'
	tagTable            noticeFieldTag = 't'
	tagColumn           noticeFieldTag = 'c'
	tagDataTypeName     noticeFieldTag = 'd'
	tagConstraintName   noticeFieldTag = 'n'
	tagFile             noticeFieldTag = 'F'
	tagLine             noticeFieldTag = 'L'
	tagRoutine          noticeFieldTag = 'R'

	tagTerminator noticeFieldTag = 0
)

// NoticeOrError is the field set carried by an ErrorResponse or a
// NoticeResponse; the two are structurally identical, differentiated only
// by the message type code and by Severity.
type NoticeOrError struct {
	Severity         string
	Code             string
	Message          string
	Detail           string
	Hint             string
	Position         int32
	InternalPosition int32
	InternalQuery    string
	Where            string
	Schema           string
	Table            string
	Column           string
	DataTypeName     string
	ConstraintName   string
	File             string
	Line             int32
	Routine          string
}

// fieldWriter is satisfied by *buffer.Writer; kept narrow here so this
// file never imports the buffer package (notice.go is consumed by both the
// encoder and the decoder sides of the codec).
type fieldWriter interface {
	WriteByte(byte)
	WriteCString(string)
	WriteInt32(int32)
}

// WriteFields appends the tagged field sequence (terminated by a zero tag)
// for n to w, in a fixed, stable order. Zero-valued optional fields are
// omitted from the wire, matching upstream Postgres behavior.
func (n NoticeOrError) WriteFields(w fieldWriter) {
	writeStr := func(tag noticeFieldTag, value string) {
		if value == "" {
			return
		}
		w.WriteByte(byte(tag))
		w.WriteCString(value)
	}

	writeStr(tagSeverity, n.Severity)
	writeStr(tagCode, n.Code)
	writeStr(tagMessage, n.Message)
	writeStr(tagDetail, n.Detail)
	writeStr(tagHint, n.Hint)
	if n.Position != 0 {
		writeStr(tagPosition, strconv.Itoa(int(n.Position)))
	}
	if n.InternalPosition != 0 {
		writeStr(tagInternalPosition, strconv.Itoa(int(n.InternalPosition)))
	}
	writeStr(tagInternalQuery, n.InternalQuery)
	writeStr(tagWhere, n.Where)
	writeStr(tagSchema, n.Schema)
	writeStr(tagTable, n.Table)
	writeStr(tagColumn, n.Column)
	writeStr(tagDataTypeName, n.DataTypeName)
	writeStr(tagConstraintName, n.ConstraintName)
	writeStr(tagFile, n.File)
	if n.Line != 0 {
		writeStr(tagLine, strconv.Itoa(int(n.Line)))
	}
	writeStr(tagRoutine, n.Routine)

	w.WriteByte(byte(tagTerminator))
}

// SetField assigns the value carried by a single decoded (tag, value) pair
// onto n. Unknown tags are ignored, keeping decoding forward-compatible
// with fields this package doesn't yet model.
func (n *NoticeOrError) SetField(tag byte, value string) {
	switch noticeFieldTag(tag) {
	case tagSeverity:
		n.Severity = value
	case tagCode:
		n.Code = value
	case tagMessage:
		n.Message = value
	case tagDetail:
		n.Detail = value
	case tagHint:
		n.Hint = value
	case tagPosition:
		n.Position = atoi32(value)
	case tagInternalPosition:
		n.InternalPosition = atoi32(value)
	case tagInternalQuery:
		n.InternalQuery = value
	case tagWhere:
		n.Where = value
	case tagSchema:
		n.Schema = value
	case tagTable:
		n.Table = value
	case tagColumn:
		n.Column = value
	case tagDataTypeName:
		n.DataTypeName = value
	case tagConstraintName:
		n.ConstraintName = value
	case tagFile:
		n.File = value
	case tagLine:
		n.Line = atoi32(value)
	case tagRoutine:
		n.Routine = value
	}
}

func atoi32(s string) int32 {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return int32(v)
}

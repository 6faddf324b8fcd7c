package errors

import "github.com/hexpg/pgwire/codes"

// Error contains all Postgres wire protocol error/notice fields. See
// https://www.postgresql.org/docs/current/static/protocol-error-fields.html
// for the full field list, most of which are optional and used to provide
// auxiliary error information.
type Error struct {
	Code             codes.Code
	Message          string
	Detail           string
	Hint             string
	Severity         Severity
	ConstraintName   string
	Position         int32
	InternalPosition int32
	InternalQuery    string
	Where            string
	Schema           string
	Table            string
	Column           string
	DataTypeName     string
	Routine          string
	Source           *Source
}

// Source represents whenever possible the source of a given error.
type Source struct {
	File     string
	Line     int32
	Function string
}

// Flatten returns a flattened error which could be used to construct Postgres
// wire protocol ErrorResponse/NoticeResponse messages.
func Flatten(err error) Error {
	if err == nil {
		return Error{
			Code:     codes.Internal,
			Message:  "unknown error, an internal process attempted to throw an error",
			Severity: LevelFatal,
		}
	}

	return Error{
		Code:             GetCode(err),
		Message:          err.Error(),
		Detail:           GetDetail(err),
		Hint:             GetHint(err),
		Severity:         DefaultSeverity(GetSeverity(err)),
		ConstraintName:   GetConstraintName(err),
		Position:         GetPosition(err),
		InternalPosition: GetInternalPosition(err),
		InternalQuery:    GetInternalQuery(err),
		Where:            GetWhere(err),
		Schema:           GetSchema(err),
		Table:            GetTable(err),
		Column:           GetColumn(err),
		DataTypeName:     GetDataTypeName(err),
		Routine:          GetRoutine(err),
		Source:           GetSource(err),
	}
}

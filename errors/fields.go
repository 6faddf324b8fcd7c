package errors

import "errors"

// WithPosition decorates the error with the cursor index (1-based) into the
// original query string where the error was detected.
func WithPosition(err error, position int32) error {
	if err == nil {
		return nil
	}

	return &withPosition{cause: err, position: position}
}

// GetPosition returns the Postgres error position inside the given error.
func GetPosition(err error) int32 {
	if p, ok := err.(*withPosition); ok {
		return p.position
	}

	if n := errors.Unwrap(err); n != nil {
		return GetPosition(n)
	}

	return 0
}

type withPosition struct {
	cause    error
	position int32
}

func (w *withPosition) Error() string { return w.cause.Error() }
func (w *withPosition) Unwrap() error { return w.cause }

// WithInternalPosition decorates the error with a cursor index into an
// internally generated query, distinct from the one submitted by the client.
func WithInternalPosition(err error, position int32) error {
	if err == nil {
		return nil
	}

	return &withInternalPosition{cause: err, position: position}
}

// GetInternalPosition returns the internal query position inside the given error.
func GetInternalPosition(err error) int32 {
	if p, ok := err.(*withInternalPosition); ok {
		return p.position
	}

	if n := errors.Unwrap(err); n != nil {
		return GetInternalPosition(n)
	}

	return 0
}

type withInternalPosition struct {
	cause    error
	position int32
}

func (w *withInternalPosition) Error() string { return w.cause.Error() }
func (w *withInternalPosition) Unwrap() error { return w.cause }

// WithInternalQuery decorates the error with the text of a failed internally
// generated command, such as one produced by a PL/pgSQL function.
func WithInternalQuery(err error, query string) error {
	if err == nil {
		return nil
	}

	return &withInternalQuery{cause: err, query: query}
}

// GetInternalQuery returns the internal query inside the given error.
func GetInternalQuery(err error) string {
	if q, ok := err.(*withInternalQuery); ok {
		return q.query
	}

	if n := errors.Unwrap(err); n != nil {
		return GetInternalQuery(n)
	}

	return ""
}

type withInternalQuery struct {
	cause error
	query string
}

func (w *withInternalQuery) Error() string { return w.cause.Error() }
func (w *withInternalQuery) Unwrap() error { return w.cause }

// WithWhere decorates the error with a trace of what was happening when the
// error occurred, typically stacked function call descriptions.
func WithWhere(err error, where string) error {
	if err == nil {
		return nil
	}

	return &withWhere{cause: err, where: where}
}

// GetWhere returns the where-context inside the given error.
func GetWhere(err error) string {
	if w, ok := err.(*withWhere); ok {
		return w.where
	}

	if n := errors.Unwrap(err); n != nil {
		return GetWhere(n)
	}

	return ""
}

type withWhere struct {
	cause error
	where string
}

func (w *withWhere) Error() string { return w.cause.Error() }
func (w *withWhere) Unwrap() error { return w.cause }

// WithSchema decorates the error with the name of the schema associated with the error.
func WithSchema(err error, schema string) error {
	if err == nil {
		return nil
	}

	return &withSchema{cause: err, schema: schema}
}

// GetSchema returns the schema name inside the given error.
func GetSchema(err error) string {
	if s, ok := err.(*withSchema); ok {
		return s.schema
	}

	if n := errors.Unwrap(err); n != nil {
		return GetSchema(n)
	}

	return ""
}

type withSchema struct {
	cause  error
	schema string
}

func (w *withSchema) Error() string { return w.cause.Error() }
func (w *withSchema) Unwrap() error { return w.cause }

// WithTable decorates the error with the name of the table associated with the error.
func WithTable(err error, table string) error {
	if err == nil {
		return nil
	}

	return &withTable{cause: err, table: table}
}

// GetTable returns the table name inside the given error.
func GetTable(err error) string {
	if t, ok := err.(*withTable); ok {
		return t.table
	}

	if n := errors.Unwrap(err); n != nil {
		return GetTable(n)
	}

	return ""
}

type withTable struct {
	cause error
	table string
}

func (w *withTable) Error() string { return w.cause.Error() }
func (w *withTable) Unwrap() error { return w.cause }

// WithColumn decorates the error with the name of the column associated with the error.
func WithColumn(err error, column string) error {
	if err == nil {
		return nil
	}

	return &withColumn{cause: err, column: column}
}

// GetColumn returns the column name inside the given error.
func GetColumn(err error) string {
	if c, ok := err.(*withColumn); ok {
		return c.column
	}

	if n := errors.Unwrap(err); n != nil {
		return GetColumn(n)
	}

	return ""
}

type withColumn struct {
	cause  error
	column string
}

func (w *withColumn) Error() string { return w.cause.Error() }
func (w *withColumn) Unwrap() error { return w.cause }

// WithDataTypeName decorates the error with the name of the data type associated with the error.
func WithDataTypeName(err error, name string) error {
	if err == nil {
		return nil
	}

	return &withDataTypeName{cause: err, name: name}
}

// GetDataTypeName returns the data type name inside the given error.
func GetDataTypeName(err error) string {
	if d, ok := err.(*withDataTypeName); ok {
		return d.name
	}

	if n := errors.Unwrap(err); n != nil {
		return GetDataTypeName(n)
	}

	return ""
}

type withDataTypeName struct {
	cause error
	name  string
}

func (w *withDataTypeName) Error() string { return w.cause.Error() }
func (w *withDataTypeName) Unwrap() error { return w.cause }

// WithRoutine decorates the error with the name of the source-code routine
// reporting the error.
func WithRoutine(err error, routine string) error {
	if err == nil {
		return nil
	}

	return &withRoutine{cause: err, routine: routine}
}

// GetRoutine returns the routine name inside the given error.
func GetRoutine(err error) string {
	if r, ok := err.(*withRoutine); ok {
		return r.routine
	}

	if n := errors.Unwrap(err); n != nil {
		return GetRoutine(n)
	}

	return ""
}

type withRoutine struct {
	cause   error
	routine string
}

func (w *withRoutine) Error() string { return w.cause.Error() }
func (w *withRoutine) Unwrap() error { return w.cause }

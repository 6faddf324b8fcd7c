package pgwire

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type ctxTypeMapKey struct{}

// contextWithTypeMap attaches tm to ctx so a Handler can decode Bind
// parameter bytes and encode DataRow values against real Postgres OIDs
// instead of treating them as opaque text, without the codec itself
// needing to know about any particular type system.
func contextWithTypeMap(ctx context.Context, tm *pgtype.Map) context.Context {
	return context.WithValue(ctx, ctxTypeMapKey{}, tm)
}

// TypeMap returns the *pgtype.Map previously attached to ctx, or the
// package-default map (covering the built-in Postgres types) if none was.
func TypeMap(ctx context.Context) *pgtype.Map {
	if tm, ok := ctx.Value(ctxTypeMapKey{}).(*pgtype.Map); ok {
		return tm
	}
	return defaultTypeMap
}

var defaultTypeMap = pgtype.NewMap()

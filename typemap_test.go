package pgwire

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
)

func TestTypeMapDefaultsWhenUnset(t *testing.T) {
	t.Parallel()

	tm := TypeMap(context.Background())
	assert.NotNil(t, tm)
	assert.Same(t, defaultTypeMap, tm)
}

func TestTypeMapReturnsAttachedMap(t *testing.T) {
	t.Parallel()

	custom := pgtype.NewMap()
	ctx := contextWithTypeMap(context.Background(), custom)
	assert.Same(t, custom, TypeMap(ctx))
}

package proxy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityPassesQueryThroughUnchanged(t *testing.T) {
	t.Parallel()

	got, err := Identity(context.Background(), "SELECT * FROM accounts")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM accounts", got)
}

func TestQueryPolicyCanRejectAQuery(t *testing.T) {
	t.Parallel()

	denyDrops := func(ctx context.Context, query string) (string, error) {
		if query == "DROP TABLE accounts" {
			return "", errors.New("forbidden statement")
		}
		return query, nil
	}

	_, err := denyDrops(context.Background(), "DROP TABLE accounts")
	assert.EqualError(t, err, "forbidden statement")

	got, err := denyDrops(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)
}

func TestQueryPolicyCanRewriteAQuery(t *testing.T) {
	t.Parallel()

	addLimit := func(ctx context.Context, query string) (string, error) {
		return query + " LIMIT 100", nil
	}

	got, err := addLimit(context.Background(), "SELECT * FROM accounts")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM accounts LIMIT 100", got)
}

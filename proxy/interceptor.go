package proxy

import "context"

// QueryPolicy is the simple-query interceptor policy. It is called with the
// SQL text of every Parse/Query command. Returning an error rejects the
// query: the proxy emits ErrorMessage+ReadyForQuery to the client and
// forwards nothing upstream. Returning a string (possibly equal to query)
// rewrites or passes the query through unchanged.
type QueryPolicy func(ctx context.Context, query string) (string, error)

// Identity is the default QueryPolicy: every query is forwarded unchanged.
func Identity(_ context.Context, query string) (string, error) {
	return query, nil
}

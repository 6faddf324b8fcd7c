package pgwire

// Well-known server parameter names exchanged after authentication, per
// https://www.postgresql.org/docs/current/libpq-status.html.
const (
	ParamServerEncoding       = "server_encoding"
	ParamClientEncoding       = "client_encoding"
	ParamServerVersion        = "server_version"
	ParamIsSuperuser          = "is_superuser"
	ParamSessionAuthorization = "session_authorization"
)

// Parameters holds the server parameters written to the client after
// authentication succeeds. Values set here are merged over the defaults
// (encoding, version, superuser flag) computed in writeParameters().
type Parameters map[string]string

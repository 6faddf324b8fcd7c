package message

// Response is the tagged union of every backend-to-frontend message the
// ResponseDecoder/ResponseEncoder pair understands.
type Response interface {
	Code() ServerMessage
	isResponse()
}

// ReadyForQuery reports the transaction status letter ('I' idle, 'T' in a
// transaction, 'E' in a failed transaction).
type ReadyForQuery struct {
	Status byte
}

func (ReadyForQuery) Code() ServerMessage { return ServerReady }
func (ReadyForQuery) isResponse()         {}

// CommandComplete reports the tag of a just-finished command, e.g. "SELECT 1".
type CommandComplete struct {
	Text string
}

func (CommandComplete) Code() ServerMessage { return ServerCommandComplete }
func (CommandComplete) isResponse()         {}

// DataRow carries one result row. A nil entry in Fields represents SQL
// NULL, encoded on the wire as a -1 length.
type DataRow struct {
	Fields []*string
}

func (DataRow) Code() ServerMessage { return ServerDataRow }
func (DataRow) isResponse()         {}

// RowDescription announces the shape of the rows that follow.
type RowDescription struct {
	Fields []FieldDesc
}

func (RowDescription) Code() ServerMessage { return ServerRowDescription }
func (RowDescription) isResponse()         {}

// ParameterStatus reports a single runtime parameter (e.g. server_encoding).
type ParameterStatus struct {
	Name  string
	Value string
}

func (ParameterStatus) Code() ServerMessage { return ServerParameterStatus }
func (ParameterStatus) isResponse()         {}

// BackendKeyData carries the process ID / secret key pair used for
// cancellation requests.
type BackendKeyData struct {
	ProcessID uint32
	SecretKey uint32
}

func (BackendKeyData) Code() ServerMessage { return ServerBackendKeyData }
func (BackendKeyData) isResponse()         {}

// NotificationResponse carries an asynchronous LISTEN/NOTIFY payload.
type NotificationResponse struct {
	ProcessID uint32
	Channel   string
	Payload   string
}

func (NotificationResponse) Code() ServerMessage { return ServerNotificationResponse }
func (NotificationResponse) isResponse()         {}

// AuthKind discriminates the Authentication response subcode.
type AuthKind int32

const (
	AuthOk                AuthKind = 0
	AuthCleartextPassword AuthKind = 3
	AuthMd5Password       AuthKind = 5
	AuthSASL              AuthKind = 10
	AuthSASLContinue      AuthKind = 11
	AuthSASLFinal         AuthKind = 12
)

// Authentication is the server's 'R' response; exactly one of the
// kind-specific fields is populated, selected by Kind.
type Authentication struct {
	Kind       AuthKind
	Salt       [4]byte  // AuthMd5Password
	Mechanisms []string // AuthSASL
	SASLData   []byte   // AuthSASLContinue / AuthSASLFinal
}

func (Authentication) Code() ServerMessage { return ServerAuth }
func (Authentication) isResponse()         {}

// NoticeResponse wraps a NoticeOrError sent as a NoticeResponse ('N');
// ErrorResponse wraps the identical shape sent as an ErrorResponse ('E').
// They are split into two Go types, both carrying message.NoticeOrError,
// so Code() can report the correct wire discriminant.
type NoticeResponse struct {
	Fields NoticeOrError
}

func (NoticeResponse) Code() ServerMessage { return ServerNoticeResponse }
func (NoticeResponse) isResponse()         {}

type ErrorResponse struct {
	Fields NoticeOrError
}

func (ErrorResponse) Code() ServerMessage { return ServerErrorResponse }
func (ErrorResponse) isResponse()         {}

// CopyInResponse announces that the backend is ready to receive COPY data.
type CopyInResponse struct {
	IsBinary    bool
	ColumnTypes []uint16
}

func (CopyInResponse) Code() ServerMessage { return ServerCopyInResponse }
func (CopyInResponse) isResponse()         {}

// CopyOutResponse announces that the backend is about to send COPY data.
type CopyOutResponse struct {
	IsBinary    bool
	ColumnTypes []uint16
}

func (CopyOutResponse) Code() ServerMessage { return ServerCopyOutResponse }
func (CopyOutResponse) isResponse()         {}

// CopyData carries one opaque chunk of COPY data, forwarded unmodified.
type CopyData struct {
	Data []byte
}

func (CopyData) Code() ServerMessage { return ServerCopyData }
func (CopyData) isResponse()         {}

// ServerCodeKind enumerates the code-only backend responses.
type ServerCodeKind int

const (
	CodeBindComplete ServerCodeKind = iota
	CodeParseComplete
	CodeCloseComplete
	CodeNoData
	CodePortalSuspended
	CodeCopyDone
	CodeReplicationStart
	CodeEmptyQuery
)

// ServerCodeOnly represents a backend response whose entire body is its
// type code: BindComplete, ParseComplete, CloseComplete, NoData,
// PortalSuspended, CopyDone, ReplicationStart, EmptyQueryResponse.
type ServerCodeOnly struct {
	Kind ServerCodeKind
}

func (c ServerCodeOnly) Code() ServerMessage {
	switch c.Kind {
	case CodeBindComplete:
		return ServerBindComplete
	case CodeParseComplete:
		return ServerParseComplete
	case CodeCloseComplete:
		return ServerCloseComplete
	case CodeNoData:
		return ServerNoData
	case CodePortalSuspended:
		return ServerPortalSuspended
	case CodeCopyDone:
		return ServerCopyDone
	case CodeReplicationStart:
		return ServerReplicationStart
	default:
		return ServerEmptyQuery
	}
}

func (ServerCodeOnly) isResponse() {}

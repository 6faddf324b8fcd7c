package message

// Command is the tagged union of every frontend-to-backend message the
// CommandDecoder/CommandEncoder pair understands. Code returns the wire
// type code the variant serializes under; Init is the one exception,
// synthesizing code 0 since the startup packet carries no type byte.
type Command interface {
	Code() ClientMessage
	isCommand()
}

// Init is the unframed startup packet. It has no real wire code; Code
// returns 0 by convention.
type Init struct {
	Major   uint16
	Minor   uint16
	Options map[string]string
}

func (Init) Code() ClientMessage { return ClientMessage(0) }
func (Init) isCommand()          {}

// StartupMd5 carries a client's password message ('p'), decoded as a single
// c-string: a cleartext password or an MD5 digest. SASL responses share the
// 'p' code but not this layout; auth.SCRAMServer reads them off the
// connection itself instead of through this type.
type StartupMd5 struct {
	Response string
}

func (StartupMd5) Code() ClientMessage { return ClientPassword }
func (StartupMd5) isCommand()          {}

// Query is a simple-query command ('Q').
type Query struct {
	Query string
}

func (Query) Code() ClientMessage { return ClientSimpleQuery }
func (Query) isCommand()          {}

// Parse is the extended-query 'P' command.
type Parse struct {
	QueryName      string
	Query          string
	ParameterTypes []uint32
}

func (Parse) Code() ClientMessage { return ClientParse }
func (Parse) isCommand()          {}

// Bind is the extended-query 'B' command.
type Bind struct {
	Portal    string
	Statement string
	Values    []Value
	Binary    bool
}

func (Bind) Code() ClientMessage { return ClientBind }
func (Bind) isCommand()          {}

// PortalKind discriminates whether a PortalOp targets Describe or Close
// semantics; both share the same c-string 'P'/'S' + name wire shape.
type PortalKind int

const (
	PortalDescribe PortalKind = iota
	PortalClose
)

// PortalOp is the shared shape of the 'D' (Describe) and 'C' (Close)
// commands, which differ only in their wire code.
type PortalOp struct {
	Kind       PortalKind
	PortalType DescribeMessage
	Name       string
}

func (p PortalOp) Code() ClientMessage {
	if p.Kind == PortalClose {
		return ClientClose
	}
	return ClientDescribe
}

func (PortalOp) isCommand() {}

// Execute is the extended-query 'E' command.
type Execute struct {
	Portal string
	Rows   uint32
}

func (Execute) Code() ClientMessage { return ClientExecute }
func (Execute) isCommand()          {}

// CodeKind enumerates the code-only frontend commands: no body beyond the
// frame header.
type CodeKind int

const (
	CodeFlush CodeKind = iota
	CodeSync
	CodeEnd
	CodeCopyDone
)

// CodeOnly represents Flush, Sync, Terminate ("End"), or CopyDone: commands
// whose entire body is their type code.
type CodeOnly struct {
	Kind CodeKind
}

func (c CodeOnly) Code() ClientMessage {
	switch c.Kind {
	case CodeFlush:
		return ClientFlush
	case CodeEnd:
		return ClientTerminate
	case CodeCopyDone:
		return ClientCopyDone
	default:
		return ClientSync
	}
}

func (CodeOnly) isCommand() {}

// CopyFail is the 'f' command aborting an in-progress COPY FROM STDIN.
type CopyFail struct {
	Message string
}

func (CopyFail) Code() ClientMessage { return ClientCopyFail }
func (CopyFail) isCommand()          {}

// CopyFromChunk is a 'd' command carrying one opaque chunk of COPY data.
// The payload is never interpreted, only passed through.
type CopyFromChunk struct {
	Buffer []byte
}

func (CopyFromChunk) Code() ClientMessage { return ClientCopyData }
func (CopyFromChunk) isCommand()          {}

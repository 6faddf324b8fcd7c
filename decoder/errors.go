package decoder

import "fmt"

// FatalError is returned by CommandDecoder.Feed/ResponseDecoder.Feed when
// the input violates the protocol in a way that cannot be recovered from.
// Decoding never silently drops bytes, so any such violation tears down
// the session rather than resyncing.
type FatalError struct {
	Reason string
}

func (e FatalError) Error() string {
	return fmt.Sprintf("pgwire: protocol violation: %s", e.Reason)
}

func fatalf(format string, args ...any) error {
	return FatalError{Reason: fmt.Sprintf(format, args...)}
}

// ErrStop is a sentinel a CommandHandler/ResponseHandler may return to ask
// Feed to stop dispatching further already-buffered messages and return
// immediately, without treating the stop as a protocol violation.
// ReadOneCommand and ReadOneResponse use this to pull exactly one message out of an otherwise push-driven
// decoder.
var ErrStop = fmt.Errorf("pgwire: decoder feed stopped by handler")


package session

// invalidRequestError marks malformed or out-of-range input, rejected before
// any engine interaction (map to 400).
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return e.msg }

// IsInvalidRequest reports whether err indicates a rejected request body.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

// unsupportedError marks a configuration the adapter cannot serve, e.g. more
// than one candidate while streaming. The session aborts (map to 400).
type unsupportedError struct{ msg string }

func (e unsupportedError) Error() string { return e.msg }

// IsUnsupported reports whether err indicates an unsupported configuration.
func IsUnsupported(err error) bool {
	_, ok := err.(unsupportedError)
	return ok
}

// engineFailureError wraps a fatal engine-level failure (map to 500). Not
// locally recoverable; no retries happen in the adapter.
type engineFailureError struct {
	msg string
	err error
}

func (e engineFailureError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e engineFailureError) Unwrap() error { return e.err }

// IsEngineFailure reports whether err indicates an engine-level failure.
func IsEngineFailure(err error) bool {
	_, ok := err.(engineFailureError)
	return ok
}

// protocolError marks misuse of the tick protocol by the host (duplicate
// payload, tick after the terminal state). Always a caller bug.
type protocolError struct{ msg string }

func (e protocolError) Error() string { return e.msg }

// IsProtocol reports whether err indicates host-side tick protocol misuse.
func IsProtocol(err error) bool {
	_, ok := err.(protocolError)
	return ok
}

package knocki

import "fmt"

// AuthError reports rejected credentials or a revoked token. It is kept
// distinct from ConnectionError so callers can tell "bad password" apart
// from "network problem".
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// ConnectionError reports a transport-level failure: a request that never
// completed, an unexpected status code, or a response body that does not
// match the vendor's documented shape.
type ConnectionError struct {
	Err     error
	Message string
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DecodeError reports an inbound event frame that could not be parsed.
// The event stream logs these and skips the frame; they never escalate
// to a ConnectionError.
type DecodeError struct {
	Err    error
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode event: %s: %v", e.Reason, e.Err)
	}
	return "decode event: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

package ikas

import "fmt"

// NetworkError wraps transport-level failures: connection refused, DNS,
// TLS and timeouts. The caller decides whether the run continues.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError is a non-2xx HTTP response or an errors[] payload returned
// by the platform after a successful transport round trip.
type ProtocolError struct {
	Status  int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ikas protocol error (HTTP %d): %s", e.Status, e.Message)
	}
	return "ikas protocol error: " + e.Message
}

// AuthError means no credential path produced a usable authorization header,
// or the fallback token exchange itself was rejected.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ikas auth error: %s: %v", e.Reason, e.Err)
	}
	return "ikas auth error: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

package inverter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthenticated is returned when a control or telemetry call is made
// before the backend's session has been established.
var ErrUnauthenticated = errors.New("inverter: not authenticated")

// ErrUnsupported is returned by backends that have no implementation for an
// operation, so callers can tell "not wired up" from "device unreachable".
var ErrUnsupported = errors.New("inverter: operation not supported")

// AuthError reports a failed authentication handshake: bad credentials, an
// unrecoverable stale session, or the login attempt cap being exceeded.
type AuthError struct {
	Reason   string
	Attempts int
}

func (e *AuthError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("inverter: authentication failed after %d attempts: %s", e.Attempts, e.Reason)
	}
	return "inverter: authentication failed: " + e.Reason
}

// UnknownTypeError is returned by the registry for a type string it doesn't
// recognize. Supported lists every registered type so the caller can
// self-correct.
type UnknownTypeError struct {
	Type      string
	Supported []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown inverter type %q, supported types: %s",
		e.Type, strings.Join(e.Supported, ", "))
}

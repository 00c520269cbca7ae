// Package errors provides the error types shared by the honeypot's
// packages.
//
// The structured types carry enough context (operation, peer address,
// backend status) for the session engine to decide whether a failure is
// worth a warning, a fallback line on the attacker's terminal, or a full
// SESSION ERROR entry.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrChannelTimeout = errors.New("no session channel opened")
	ErrRequestTimeout = errors.New("no shell or exec request")
	ErrPeerClosed     = errors.New("peer closed connection")
	ErrModeAlreadySet = errors.New("session mode already set")
	ErrCircuitOpen    = errors.New("circuit breaker is open")
	ErrTimeout        = errors.New("operation timed out")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure on the listening socket.
type NetworkError struct {
	Op        string // "listen", "accept"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the accept loop should keep going
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-level failure for one client.
type SSHError struct {
	Op   string // "handshake", "channel", "request"
	Addr string // client address
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// BackendError represents a failed call to the completion backend.
// Status is zero when no HTTP response was received.
type BackendError struct {
	URL       string
	Status    int
	Err       error
	Retryable bool
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend %s: HTTP %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.URL, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the operator (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, detecting retryability from the
// underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, addr string, err error) *SSHError {
	return &SSHError{Op: op, Addr: addr, Err: err}
}

// WrapBackend creates a BackendError.  Transport failures, timeouts and
// 5xx responses are retryable; 4xx responses are not.
func WrapBackend(url string, status int, err error) *BackendError {
	retryable := status >= 500 || (status == 0 && !errors.Is(err, ErrCircuitOpen))
	return &BackendError{URL: url, Status: status, Err: err, Retryable: retryable}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsTimeout reports whether err is, or wraps, a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // still the best hint for accept errors
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }

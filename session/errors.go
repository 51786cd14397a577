package session

import (
	"errors"
	"fmt"
	"time"
)

// Kind is a short machine-readable error category.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindSetupViolation   Kind = "setup_violation"
	KindDecode           Kind = "decode_failure"
	KindTransport        Kind = "transport_failure"
	KindServerTerminated Kind = "server_terminated"
	KindSetupTimeout     Kind = "setup_timeout"
	KindInvalidConfig    Kind = "invalid_config"
)

var (
	ErrInvalidConfig = errors.New("invalid session config")
	ErrSetupTimeout  = errors.New("setup acknowledgement not received in time")
	ErrNotConnected  = errors.New("transport is not connected")
	ErrServerGoAway  = errors.New("server sent goAway")
)

// Error attaches a Kind to an underlying error. TimeLeft is set for server terminations.
type Error struct {
	Kind     Kind
	Err      error
	TimeLeft time.Duration
}

func (e *Error) Error() string {
	if e.Kind == KindServerTerminated {
		return fmt.Sprintf("server sent goAway. Time left: %s", e.TimeLeft)
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches kind to err. Errors that already carry a kind are returned unchanged.
func Wrap(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// HasKind reports whether err carries kind.
func HasKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

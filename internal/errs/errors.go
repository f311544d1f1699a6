package errs

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError reports a malformed identifier, name or option value.
type ValidationError struct {
	Kind   string // what was validated, e.g. "user id"
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%q is not a valid %s: %s", e.Value, e.Kind, e.Reason)
}

// Is lets errors.Is match ErrInvalidArgument.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgument }

// Invalid builds a ValidationError.
func Invalid(kind, value, reason string) error {
	return &ValidationError{Kind: kind, Value: value, Reason: reason}
}

// ParseError reports a malformed serialized structure (device bundle, ciphertext header, EDEK set).
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse " + e.What
	}
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// JwtError reports a malformed or structurally invalid token.
type JwtError struct {
	Reason string
	Err    error
}

func (e *JwtError) Error() string {
	if e.Err == nil {
		return "jwt: " + e.Reason
	}
	return fmt.Sprintf("jwt: %s: %v", e.Reason, e.Err)
}

func (e *JwtError) Unwrap() error { return e.Err }

// SdkError wraps a runtime failure of a named SDK operation.
type SdkError struct {
	Op  string
	Err error
}

func (e *SdkError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *SdkError) Unwrap() error { return e.Err }

// Op wraps err as an SdkError for op. Deadline expiry is normalized to ErrTimeout
// so callers can match it with errors.Is regardless of where it surfaced.
func Op(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *SdkError
	if errors.As(err, &se) && se.Op == op {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &SdkError{Op: op, Err: err}
}

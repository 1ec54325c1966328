package chain

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindRule         Kind = "rule"
)

// RevertError rejects a transaction with no effect on state.
type RevertError struct {
	Kind   Kind
	Reason string
}

func (e *RevertError) Error() string {
	return e.Reason
}

func Validation(reason string) *RevertError {
	return &RevertError{Kind: KindValidation, Reason: reason}
}

func Unauthorized(reason string) *RevertError {
	return &RevertError{Kind: KindUnauthorized, Reason: reason}
}

func Rule(reason string) *RevertError {
	return &RevertError{Kind: KindRule, Reason: reason}
}

// AsRevert reports whether err carries a RevertError anywhere in its chain.
func AsRevert(err error) (*RevertError, bool) {
	var revert *RevertError
	if errors.As(err, &revert) {
		return revert, true
	}
	return nil, false
}

var (
	ErrUnknownMethod = Validation("unknown method")
	ErrOutOfOrder    = errors.New("record out of order")
	ErrHashMismatch  = errors.New("record hash mismatch")
)

// PanicError is returned when a handler panics. The transaction is reverted.
type PanicError struct {
	Method string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s panicked: %v", e.Method, e.Value)
}

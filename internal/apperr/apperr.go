// Package apperr defines the error kinds surfaced by the order core so the
// HTTP layer can render each one with its own status and message.
package apperr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type Kind int

const (
	Unknown Kind = iota
	InvalidState
	NotFound
	InsufficientInventory
	InvalidStatusTransition
)

func (k Kind) String() string {
	switch k {
	case InvalidState:
		return "invalid_state"
	case NotFound:
		return "not_found"
	case InsufficientInventory:
		return "insufficient_inventory"
	case InvalidStatusTransition:
		return "invalid_status_transition"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Reasons carries one human readable line per
// offending item for InsufficientInventory.
type Error struct {
	Kind    Kind
	Message string
	Reasons []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, "; ")
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Invalidf(format string, args ...any) *Error {
	return &Error{Kind: InvalidState, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

func Insufficient(reasons []string) *Error {
	return &Error{Kind: InsufficientInventory, Message: "insufficient inventory", Reasons: reasons}
}

func Transition(from, to string) *Error {
	return &Error{Kind: InvalidStatusTransition, Message: fmt.Sprintf("cannot change status from %s to %s", from, to)}
}

// Wrap classifies err as Unknown unless it already carries a kind.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: Unknown, Message: message, Err: err}
}

func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Unknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func ReasonsOf(err error) []string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reasons
	}
	return nil
}

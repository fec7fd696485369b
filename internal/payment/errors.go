package payment

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to classify an Authorize failure.
var (
	ErrInvalidInstrument  = errors.New("invalid_instrument")
	ErrExpiredInstrument  = errors.New("expired_instrument")
	ErrDeclined           = errors.New("declined")
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
)

// Error carries a message safe to show to the payer and unwraps to its kind.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Kind returns the classification code of err, or "" when err is not a payment error.
func Kind(err error) string {
	for _, k := range []error{ErrInvalidInstrument, ErrExpiredInstrument, ErrDeclined, ErrGatewayUnavailable} {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return ""
}

func gatewayf(format string, args ...any) *Error {
	return newError(ErrGatewayUnavailable, fmt.Sprintf(format, args...))
}

package session

import "errors"

// Error kinds. Use errors.Is against these; Error() on a returned error is
// the underlying message, unchanged, so it can be shown to the user as is.
var (
	ErrNoProvider          = errors.New("no wallet provider available")
	ErrConnection          = errors.New("wallet connection failed")
	ErrBalanceRead         = errors.New("balance read failed")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrTransaction         = errors.New("transaction failed")

	ErrNotConnected  = errors.New("wallet is not connected")
	ErrInvalidAmount = errors.New("amount must be a positive decimal")
	ErrBusy          = errors.New("another transaction is in progress")
)

type kindError struct {
	kind  error
	cause error
}

func wrap(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &kindError{kind: kind, cause: cause}
}

func (e *kindError) Error() string {
	return e.cause.Error()
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

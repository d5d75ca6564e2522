package client

import (
	"errors"
	"fmt"
)

// LookupError is returned when a lookup could not obtain a response.
type LookupError struct {
	ID         string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lookup %s: %s error: %s: %v", e.ID, e.ErrorClass, e.Message, e.Err)
	}
	return fmt.Sprintf("lookup %s: %s error: %s", e.ID, e.ErrorClass, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *LookupError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a lookup transport failure.
func IsTransport(err error) bool {
	var lookupErr *LookupError
	return errors.As(err, &lookupErr)
}

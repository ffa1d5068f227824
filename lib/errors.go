package lib

import (
	"errors"
	"fmt"
)

// StoreError wraps any lookup/write failure from the persistence layer. Callers
// treat it as fatal to the current unit of work.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

var errMissingID = errors.New("message id is missing or not positive")

// ParseError means a stored message payload could not be decoded. The delivery
// is marked error without any send attempt.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse payload: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError rejects a malformed inbound batch before anything is stored.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid batch: " + e.Reason }

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

package canalyst

import (
	"errors"
)

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable wraps an error in `unrecoverableError` struct
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable checks if error is an instance of `unrecoverableError`
func IsRecoverable(err error) bool {
	if _, ok := err.(unrecoverableError); ok {
		return false
	}
	return true
}

var (
	ErrDeviceNotOpen     = errors.New("device is not open")
	ErrAlreadyReceiving  = errors.New("already receiving")
	ErrNotReceiving      = errors.New("not receiving")
	ErrNoProfileSelected = errors.New("no baud rate profile selected")
	ErrUnknownProfile    = errors.New("unknown baud rate profile")
	ErrEmptyPayload      = errors.New("transmit payload is empty")
	ErrGatewayClosed     = errors.New("gateway connection closed")
)

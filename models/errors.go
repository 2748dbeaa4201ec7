package models

import "fmt"

// ErrorValidation reports an illegal transition or a missing field. State
// is unchanged when it is returned.
type ErrorValidation struct {
	Message string
}

func (e ErrorValidation) Error() string {
	return e.Message
}

type ErrorNotFound struct {
	Resource string
	Key      string
}

func (e ErrorNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// ErrorConflict is returned when the stored row no longer matches what the
// caller read, or a unique key is already taken.
type ErrorConflict struct {
	Message string
}

func (e ErrorConflict) Error() string {
	return e.Message
}

// ErrorStorage wraps a persistence failure. Nothing from the failed
// operation is visible once it is returned.
type ErrorStorage struct {
	Op  string
	Err error
}

func (e ErrorStorage) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e ErrorStorage) Unwrap() error {
	return e.Err
}

type ErrorUnauthorized struct {
	Message string
}

func (e ErrorUnauthorized) Error() string {
	return e.Message
}

package store

import (
	"errors"
	"fmt"
)

// NotFoundError reports that an object was absent. Delete treats it as
// success; Get and List translate it to a nil/empty result.
type NotFoundError struct {
	Kind      Kind
	Namespace string
	Name      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s/%s not found", e.Kind, e.Namespace, e.Name)
}

func (e *NotFoundError) IsNotFound() {}

// ConflictError reports that a write raced with another writer and the
// caller's view is stale. It is never retried; the caller must re-fetch.
type ConflictError struct {
	Kind      Kind
	Namespace string
	Name      string
	Err       error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict writing %s %s/%s: %v", e.Kind, e.Namespace, e.Name, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

func (e *ConflictError) IsConflict() {}

var (
	errAlreadyExists        = errors.New("object already exists")
	errStaleResourceVersion = errors.New("stale resource version")
)

// notFound and conflict let callers classify errors without depending on
// the concrete backend's error types.
type notFound interface {
	IsNotFound()
}

type conflict interface {
	IsConflict()
}

// IsNotFound reports whether err is a "not found" class error.
func IsNotFound(err error) bool {
	var target notFound

	return errors.As(err, &target)
}

// IsConflict reports whether err is a conflict class error.
func IsConflict(err error) bool {
	var target conflict

	return errors.As(err, &target)
}

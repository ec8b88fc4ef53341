package core

import (
	"strings"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			msgs := make([]string, 0, len(err.Fields))
			for _, f := range err.Fields {
				msgs = append(msgs, f.Field+": "+f.Error)
			}
			return strings.Join(msgs, "; ")
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// StorageError reports a failed object storage operation.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func NewStorageError(op, key string, err error) error {
	return &StorageError{Op: op, Key: key, Err: err}
}

func (err StorageError) Error() string {
	msg := "storage " + err.Op
	if err.Key != "" {
		msg += " " + err.Key
	}
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err StorageError) Unwrap() error { return err.Err }

// PersistenceError reports a failed relational store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func (err PersistenceError) Error() string {
	if err.Err == nil {
		return "persistence " + err.Op
	}
	return "persistence " + err.Op + ": " + err.Err.Error()
}

func (err PersistenceError) Unwrap() error { return err.Err }

// AuthError reports a missing, invalid or revoked session.
type AuthError struct {
	Op  string
	Err error
}

func NewAuthError(op string, err error) error {
	return &AuthError{Op: op, Err: err}
}

func (err AuthError) Error() string {
	if err.Err == nil {
		return "auth " + err.Op
	}
	return err.Err.Error()
}

func (err AuthError) Unwrap() error { return err.Err }

// UpstreamServiceError reports a failed call to a third-party service (e.g. chat completion).
type UpstreamServiceError struct {
	Service string
	Op      string
	Err     error
}

func NewUpstreamServiceError(service, op string, err error) error {
	return &UpstreamServiceError{Service: service, Op: op, Err: err}
}

func (err UpstreamServiceError) Error() string {
	msg := err.Service + " " + err.Op
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err UpstreamServiceError) Unwrap() error { return err.Err }

// ErrorKind names the kind of err, as reported to clients and metrics.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var (
		vErr *ValidationError
		sErr *StorageError
		pErr *PersistenceError
		aErr *AuthError
		uErr *UpstreamServiceError
	)
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.As(err, &sErr):
		return "storage"
	case errors.As(err, &pErr):
		return "persistence"
	case errors.As(err, &aErr):
		return "auth"
	case errors.As(err, &uErr):
		return "upstream"
	default:
		return "internal"
	}
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

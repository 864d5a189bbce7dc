package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrDataConflict       = errors.New("data conflict")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimit          = errors.New("rate limit")
)

// Type just for murshallig purpose.
// Should only be used immediately before marshalling.
type JSON struct {
	Error string `json:"error"`
}

// ValidationError names the request field that failed validation.
// It matches ErrInvalidRequest with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// Let users know which required request parameter is not provided.
type RequiredJSONBodyParamError struct {
	ParamName string
}

func (e *RequiredJSONBodyParamError) Error() string {
	return fmt.Sprintf("JSON body argument %q is required, but not found", e.ParamName)
}

func (e *RequiredJSONBodyParamError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// Provides details at which field unique violation has occurred.
type AlreadyExistsError struct {
	FieldName string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("record with field %q already exists", e.FieldName)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrDataConflict
}

// StorageError wraps a failure of the persistence layer with the operation name.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %s", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage wraps err into StorageError unless it is nil or already a domain error.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDataConflict) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

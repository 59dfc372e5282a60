package data

import (
	"encoding/json"
	"errors"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("edit conflict, please try again")
	ErrDuplicateEmail     = errors.New("a user with this email address already exists")
	ErrInvalidCredentials = errors.New("invalid authentication credentials")
)

// ValidationError carries one message per rejected field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	data, err := json.Marshal(e.Fields)
	if err != nil {
		return "validation failed"
	}
	return string(data)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

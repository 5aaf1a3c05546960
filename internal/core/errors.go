package core

import (
	"errors"
	"strings"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNotFound           = errors.New("not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
)

// FieldError describes one violated constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every violated constraint of a request.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return e.Message + ": " + strings.Join(msgs, "; ")
}

// Rule is a single declarative constraint on a field.
type Rule struct {
	Field   string
	Message string
	Valid   func() bool
}

// Rules is evaluated exhaustively: every failing rule is reported.
type Rules []Rule

// Validate returns nil or a *ValidationError listing all failures.
func (rs Rules) Validate() error {
	var fields []FieldError
	for _, r := range rs {
		if !r.Valid() {
			fields = append(fields, FieldError{Field: r.Field, Message: r.Message})
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Message: "Invalid input", Fields: fields}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

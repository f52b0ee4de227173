// Package apperr defines the error taxonomy shared by the service, index and API layers.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	ErrInvariant   = errors.New("invariant violation")
	ErrConflict    = errors.New("conflict")
	ErrPropagation = errors.New("propagation failed")
)

// Code classifies an error for transport mapping and logging.
type Code string

const (
	CodeValidation  Code = "validation"
	CodeForbidden   Code = "forbidden"
	CodeNotFound    Code = "not_found"
	CodeInvariant   Code = "invariant_violation"
	CodeConflict    Code = "conflict"
	CodePropagation Code = "propagation"
	CodeInternal    Code = "internal"
)

var codeSentinels = map[Code]error{
	CodeValidation:  ErrValidation,
	CodeForbidden:   ErrForbidden,
	CodeNotFound:    ErrNotFound,
	CodeInvariant:   ErrInvariant,
	CodeConflict:    ErrConflict,
	CodePropagation: ErrPropagation,
}

// Error carries a code, the failing operation and a human-readable message.
type Error struct {
	Code    Code
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s", op, msg)
	case msg != "":
		return msg
	case op != "":
		return fmt.Sprintf("%s: %s", op, e.Code)
	default:
		return string(e.Code)
	}
}

// Unwrap exposes both the cause and the code sentinel to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if s, ok := codeSentinels[e.Code]; ok {
		out = append(out, s)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// New builds a coded error.
func New(code Code, op, msg string) error {
	return &Error{Code: code, Op: op, Message: msg}
}

// Wrap annotates err with a code. A nil err stays nil.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: err.Error(), Cause: err}
}

func Validation(op, msg string) error { return New(CodeValidation, op, msg) }
func Forbidden(op, msg string) error  { return New(CodeForbidden, op, msg) }
func NotFound(op, msg string) error   { return New(CodeNotFound, op, msg) }
func Invariant(op, msg string) error  { return New(CodeInvariant, op, msg) }

// CodeOf returns the code carried by err, falling back to sentinel matching.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for code, s := range codeSentinels {
		if errors.Is(err, s) {
			return code
		}
	}
	return CodeInternal
}

// Message returns the user-facing message of a coded error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

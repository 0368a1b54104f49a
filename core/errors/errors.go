package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure for callers deciding what to do next. Every kind
// is caller-visible; nothing at this layer is retried internally.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindState
	KindAuthorization
	KindResource
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindAuthorization:
		return "authorization"
	case KindResource:
		return "resource"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a coded, classified failure. Instances are declared once as package
// level sentinels and compared with errors.Is; context is attached by wrapping.
type Error struct {
	code    uint32
	kind    Kind
	module  string
	message string
}

// New declares a coded error for the named module.
func New(module string, code uint32, kind Kind, message string) *Error {
	return &Error{code: code, kind: kind, module: module, message: message}
}

func (e *Error) Error() string {
	if e.module == "" {
		return e.message
	}
	return e.module + ": " + e.message
}

// Code returns the stable numeric identifier exposed to clients.
func (e *Error) Code() uint32 { return e.code }

// Module names the component that declared the error.
func (e *Error) Module() string { return e.module }

// Kind returns the failure category.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the human readable description without the module prefix.
func (e *Error) Message() string { return e.message }

// Wrapf annotates a sentinel with formatted context while keeping it
// matchable through errors.Is and errors.As.
func Wrapf(sentinel *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// As extracts the first coded error in the chain.
func As(err error) (*Error, bool) {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}

// KindOf classifies err. Errors without a coded cause are internal.
func KindOf(err error) Kind {
	if coded, ok := As(err); ok {
		return coded.kind
	}
	return KindInternal
}

// CodeOf returns the code of the first coded error in the chain, or zero.
func CodeOf(err error) uint32 {
	if coded, ok := As(err); ok {
		return coded.code
	}
	return 0
}

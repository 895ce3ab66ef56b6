// Package errors wraps the standard library errors with message-prefix wrapping
// and type checks over an error tree.
package errors

import (
	"errors"
	"fmt"
)

// wrappedError prefixes the cause message. Is and As see through it.
type wrappedError struct {
	cause error
	msg   string
}

func (w *wrappedError) Error() string {
	return w.msg + ": " + w.cause.Error()
}

func (w *wrappedError) Unwrap() error {
	return w.cause
}

// New calls [errors.New].
//
//go:inline
func New(text string) error {
	return errors.New(text) //nolint:err113
}

// Errorf calls [fmt.Errorf].
//
//go:inline
func Errorf(format string, vals ...any) error {
	return fmt.Errorf(format, vals...) //nolint:err113
}

// Wrap prefixes the cause message with text. A nil cause stays nil and an
// empty text returns cause as is.
func Wrap(cause error, text string) error {
	if cause == nil || text == "" {
		return cause
	}

	return &wrappedError{cause: cause, msg: text}
}

// Wrapf is Wrap with a formatted prefix.
func Wrapf(cause error, format string, vals ...any) error {
	if cause == nil {
		return nil
	}

	return Wrap(cause, fmt.Sprintf(format, vals...))
}

// Join calls [errors.Join].
//
//go:inline
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is calls [errors.Is].
//
//go:inline
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As calls [errors.As].
//
//go:inline
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Has reports whether any error in err's tree has the type T.
func Has[T error](err error) bool {
	var target T

	return errors.As(err, &target)
}

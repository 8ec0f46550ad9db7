// Package errors provides small wrapping helpers so every layer adds the
// operation it was performing to an error without losing the cause.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Wrap prefixes err with context. A nil err stays nil.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf is Wrap with a formatted context.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// New, Is and As mirror the standard library so callers need one import.
func New(text string) error { return stderrors.New(text) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

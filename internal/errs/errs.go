package errs

import (
	"errors"
	"fmt"
	"log/slog"
)

// Kinds. Every domain error wraps exactly one of these so the HTTP layer can
// map it to a status code with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrDependency        = errors.New("dependency failure")
)

// Error is a domain error tagged with a kind and, optionally, a cause.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

// New returns a sentinel-style domain error of the given kind.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Dependency tags a failing collaborator (blob store, broker) as ErrDependency.
func Dependency(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrDependency, Msg: msg, Cause: err}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Wrap adds context and preserves the error chain (errors.Is/As works).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context and preserves the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

// Message returns the client-safe message of the first domain error in the
// chain, falling back to err.Error().
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Error()
	}
	return err.Error()
}

// Usage: slog.Any("error", errs.Loggable(err))
type loggable struct{ err error }

func Loggable(err error) slog.LogValuer { return loggable{err: err} }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}
	return slog.GroupValue(
		slog.String("message", l.err.Error()),
		slog.Any("chain", ErrorChainStrings(l.err)),
	)
}

// ErrorChainStrings returns the unwrap chain as strings (outer -> inner).
// Multi-error nodes contribute their first branch.
func ErrorChainStrings(err error) []string {
	if err == nil {
		return nil
	}

	out := make([]string, 0, 8)
	for e := err; e != nil; {
		out = append(out, e.Error())
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			branches := u.Unwrap()
			if len(branches) == 0 {
				return out
			}
			e = branches[len(branches)-1]
		default:
			e = errors.Unwrap(e)
		}
	}
	return out
}

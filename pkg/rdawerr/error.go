// Package rdawerr defines the core engine's error taxonomy: a stable,
// closed set of error kinds plus a cause chain with source locations,
// captured at the first failure site.
package rdawerr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the stable error taxonomy shared by every core package and
// surfaced to RPC clients.
type Kind int

const (
	Other Kind = iota
	Deserialization
	Disconnected
	IndexOutOfBounds
	InvalidId
	InvalidType
	InvalidUtf8
	InvalidUuid
	Io
	NotFound
	NotSupported
	OutOfMemory
	PermissionDenied
	Serialization
	Sql
	UnknownVersion
	RecursiveTrack
)

func (k Kind) String() string {
	switch k {
	case Deserialization:
		return "Deserialization"
	case Disconnected:
		return "Disconnected"
	case IndexOutOfBounds:
		return "IndexOutOfBounds"
	case InvalidId:
		return "InvalidId"
	case InvalidType:
		return "InvalidType"
	case InvalidUtf8:
		return "InvalidUtf8"
	case InvalidUuid:
		return "InvalidUuid"
	case Io:
		return "Io"
	case NotFound:
		return "NotFound"
	case NotSupported:
		return "NotSupported"
	case OutOfMemory:
		return "OutOfMemory"
	case PermissionDenied:
		return "PermissionDenied"
	case Serialization:
		return "Serialization"
	case Sql:
		return "Sql"
	case UnknownVersion:
		return "UnknownVersion"
	case RecursiveTrack:
		return "RecursiveTrack"
	default:
		return "Other"
	}
}

// entry is one link in the cause chain: a kind, a message, and an
// optional wrapped cause.
type entry struct {
	kind    Kind
	message string
	cause   *entry
}

// Error is the core error type. It carries a cause chain and a backtrace
// captured at the site of the first New/Wrap call, via github.com/pkg/errors.
type Error struct {
	cause     entry
	stackErr  error // github.com/pkg/errors-wrapped, carries the backtrace
}

// New creates a new Error of the given kind, capturing a backtrace.
func New(kind Kind, message string) *Error {
	return &Error{
		cause:    entry{kind: kind, message: message},
		stackErr: errors.New(message),
	}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches additional context to an existing error, producing a new
// Error whose Kind is the one given here (the outermost kind wins).
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return New(kind, message)
	}

	var inner *Error
	if errors.As(err, &inner) {
		return &Error{
			cause:    entry{kind: kind, message: message, cause: &inner.cause},
			stackErr: errors.WithMessage(inner.stackErr, message),
		}
	}

	return &Error{
		cause:    entry{kind: kind, message: message, cause: &entry{kind: Other, message: err.Error()}},
		stackErr: errors.Wrap(err, message),
	}
}

// Context adds a message to an error without changing its Kind.
func Context(err error, message string) *Error {
	var inner *Error
	if errors.As(err, &inner) {
		return Wrap(err, inner.Kind(), message)
	}
	return Wrap(err, Other, message)
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.cause.kind.String())
	b.WriteString(": ")
	b.WriteString(e.cause.message)

	for c := e.cause.cause; c != nil; c = c.cause {
		b.WriteString(": ")
		b.WriteString(c.message)
	}

	return b.String()
}

// Kind returns the outermost error kind.
func (e *Error) Kind() Kind { return e.cause.kind }

// Is reports whether this error (or any cause in its chain) has the given kind.
func (e *Error) Is(kind Kind) bool {
	for c := &e.cause; c != nil; c = c.cause {
		if c.kind == kind {
			return true
		}
	}
	return false
}

// Format implements fmt.Formatter so that %+v prints the captured backtrace.
func (e *Error) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s\n%+v", e.Error(), e.stackErr)
		return
	}
	fmt.Fprint(s, e.Error())
}

// KindOf extracts the Kind of err, returning Other if it is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return Other
}

// Package mesherr defines the error taxonomy shared by mesh parsers, writers
// and deserialization targets.
//
// Every failure surfaced by a codec is an *Error carrying a Kind. Kinds are
// fatal by construction: parsing is single-pass and non-recovering, so callers
// only need the kind to decide how to report the failure, never how to resume.
//
//	err := codec.NewMeditCodec().Deserialize(r, mesh)
//	if errors.Is(err, mesherr.ErrSyntax) {
//	    // malformed input
//	}
package mesherr

import (
	"errors"
	"fmt"
)

// Kind classifies a mesh error.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors outside this taxonomy.
	KindUnknown Kind = iota

	// KindIo indicates the source or destination stream failed.
	KindIo

	// KindSyntax indicates malformed input: bad token count, unparseable
	// number, unknown keyword, missing header terminator.
	KindSyntax

	// KindUnsupported indicates a recognized but unhandled version or variant.
	KindUnsupported

	// KindBrokenInvariant indicates a protocol-usage violation between a
	// format driver and a deserialization target. It points at a bug, not at
	// bad input.
	KindBrokenInvariant

	// KindOtherInternal wraps a foreign error raised inside this module.
	KindOtherInternal

	// KindOtherExternal wraps a foreign error raised by caller-supplied code.
	KindOtherExternal
)

func (k Kind) String() string {
	switch k {
	case KindIo:
		return "io"
	case KindSyntax:
		return "syntax"
	case KindUnsupported:
		return "unsupported"
	case KindBrokenInvariant:
		return "broken invariant"
	case KindOtherInternal:
		return "internal"
	case KindOtherExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrIo              = &Error{Kind: KindIo}
	ErrSyntax          = &Error{Kind: KindSyntax}
	ErrUnsupported     = &Error{Kind: KindUnsupported}
	ErrBrokenInvariant = &Error{Kind: KindBrokenInvariant}
	ErrOtherInternal   = &Error{Kind: KindOtherInternal}
	ErrOtherExternal   = &Error{Kind: KindOtherExternal}
)

// Error is the concrete error type of the taxonomy.
type Error struct {
	Kind    Kind
	Message string
	// Line is the 1-based source line the error was detected on, 0 if unknown.
	Line int
	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at line %d", msg, e.Line)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil && t.Line == 0
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Io wraps a stream failure.
func Io(err error) *Error {
	return &Error{Kind: KindIo, Err: err}
}

// Syntax reports malformed input detected on line (0 if unknown).
func Syntax(line int, format string, args ...any) *Error {
	return &Error{Kind: KindSyntax, Line: line, Message: fmt.Sprintf(format, args...)}
}

// Unsupported reports a recognized but unhandled variant.
func Unsupported(format string, args ...any) *Error {
	return &Error{Kind: KindUnsupported, Message: fmt.Sprintf(format, args...)}
}

// BrokenInvariant reports a protocol-usage violation.
func BrokenInvariant(format string, args ...any) *Error {
	return &Error{Kind: KindBrokenInvariant, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps a foreign error raised inside this module.
func Internal(err error) *Error {
	return &Error{Kind: KindOtherInternal, Err: err}
}

// External wraps a foreign error raised by caller-supplied code. Errors that
// already belong to the taxonomy pass through unchanged.
func External(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindOtherExternal, Err: err}
}

package protocol

import (
	"errors"
	"fmt"
)

// Kind is the symbolic name of a failure that can be reported to the other
// side of a channel pair, or upstream as a process exit status.
type Kind string

const (
	KindNoFile            Kind = "NoFile"
	KindInvalidArgument   Kind = "InvalidArgument"
	KindNotFIFO           Kind = "NotFIFO"
	KindUnreadable        Kind = "Unreadable"
	KindMissingArg        Kind = "MissingArg"
	KindPayloadError      Kind = "PayloadError"
	KindPayloadTypeError  Kind = "PayloadTypeError"
	KindPayloadIncomplete Kind = "PayloadIncomplete"
	KindDimensionMismatch Kind = "DimensionMismatch"
	KindSolutionMismatch  Kind = "SolutionMismatch"
	KindNotSupported      Kind = "NotSupported"
	KindServerError       Kind = "ServerError"
)

// Several kinds deliberately share 134, the coarse "bad payload" bucket.
var kindCodes = map[Kind]int{
	KindNoFile:            2,
	KindInvalidArgument:   22,
	KindNotFIFO:           60,
	KindUnreadable:        77,
	KindMissingArg:        132,
	KindPayloadError:      133,
	KindPayloadTypeError:  134,
	KindPayloadIncomplete: 135,
	KindDimensionMismatch: 134,
	KindSolutionMismatch:  134,
	KindNotSupported:      134,
	KindServerError:       254,
}

// Kinds returns every known kind.
func Kinds() []Kind {
	return []Kind{
		KindNoFile,
		KindInvalidArgument,
		KindNotFIFO,
		KindUnreadable,
		KindMissingArg,
		KindPayloadError,
		KindPayloadTypeError,
		KindPayloadIncomplete,
		KindDimensionMismatch,
		KindSolutionMismatch,
		KindNotSupported,
		KindServerError,
	}
}

// Code returns the numeric code of the kind. Unknown kinds map to the
// ServerError code.
func (k Kind) Code() int {
	if code, ok := kindCodes[k]; ok {
		return code
	}

	return kindCodes[KindServerError]
}

func (k Kind) String() string {
	return string(k)
}

// Error is a failure classified by the error taxonomy. Payload optionally
// holds the raw message that caused it.
type Error struct {
	Kind    Kind
	Message string
	Payload []byte

	err error
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error of the given kind around cause.
func WrapError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), err: cause}
}

// WithPayload attaches the offending raw payload.
func (e *Error) WithPayload(payload []byte) *Error {
	e.Payload = payload
	return e
}

func (e *Error) Code() int {
	return e.Kind.Code()
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports true for any *Error of the same kind, so the Err* sentinels
// below can be used with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Sentinels for errors.Is. A sentinel with a message only matches errors
// carrying that same message.
var (
	ErrNoFile            = &Error{Kind: KindNoFile}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrNotFIFO           = &Error{Kind: KindNotFIFO}
	ErrUnreadable        = &Error{Kind: KindUnreadable}
	ErrMissingArg        = &Error{Kind: KindMissingArg}
	ErrPayload           = &Error{Kind: KindPayloadError}
	ErrPayloadType       = &Error{Kind: KindPayloadTypeError}
	ErrPayloadIncomplete = &Error{Kind: KindPayloadIncomplete}
	ErrDimensionMismatch = &Error{Kind: KindDimensionMismatch}
	ErrSolutionMismatch  = &Error{Kind: KindSolutionMismatch}
	ErrNotSupported      = &Error{Kind: KindNotSupported}
	ErrServer            = &Error{Kind: KindServerError}

	ErrMissingDiscriminant = &Error{Kind: KindPayloadTypeError, Message: msgMissingDiscriminant}
	ErrUnknownVariant      = &Error{Kind: KindPayloadTypeError, Message: msgUnknownVariant}
)

const (
	msgMissingDiscriminant = "missing discriminant"
	msgUnknownVariant      = "unknown variant"
)

// KindOf returns the taxonomy kind of err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}

	return "", false
}

// ExitCode maps err to a process exit status: 0 for nil, the taxonomy code
// for classified errors and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	if kind, ok := KindOf(err); ok {
		return kind.Code()
	}

	return 1
}

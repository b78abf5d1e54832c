package domain

import "errors"

// ErrorKind classifies a domain failure for the transport boundary.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindInvalidInput
	KindUnprocessable
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindUnprocessable:
		return "unprocessable"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a typed domain failure. Two errors match under errors.Is when
// kind and code are equal, so sentinels survive re-creation with a more
// specific message.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// WithMessage returns a copy of e carrying msg.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: msg}
}

var (
	ErrTherapistNotFound   = &Error{Kind: KindNotFound, Code: "THERAPIST_NOT_FOUND", Message: "therapist not found"}
	ErrSessionTypeNotFound = &Error{Kind: KindNotFound, Code: "SESSION_TYPE_NOT_FOUND", Message: "session type not found"}
	ErrSessionNotFound     = &Error{Kind: KindNotFound, Code: "SESSION_NOT_FOUND", Message: "session not found"}

	ErrInvalidTimezone       = &Error{Kind: KindInvalidInput, Code: "INVALID_TIMEZONE", Message: "invalid timezone"}
	ErrInvalidDateTime       = &Error{Kind: KindInvalidInput, Code: "INVALID_DATETIME", Message: "invalid date/time"}
	ErrInvalidIdempotencyKey = &Error{Kind: KindInvalidInput, Code: "INVALID_IDEMPOTENCY_KEY", Message: "Idempotency-Key must be a valid UUID"}
	ErrInvalidArgument       = &Error{Kind: KindInvalidInput, Code: "INVALID_ARGUMENT", Message: "invalid argument"}

	// ErrSessionTypeUnknown is the booking-path form of a missing session type.
	ErrSessionTypeUnknown   = &Error{Kind: KindUnprocessable, Code: "SESSION_TYPE_NOT_FOUND", Message: "session type not found"}
	ErrOutOfWindow          = &Error{Kind: KindUnprocessable, Code: "OUT_OF_WINDOW", Message: "requested time is outside the therapist's availability"}
	ErrInsufficientLeadTime = &Error{Kind: KindUnprocessable, Code: "INSUFFICIENT_LEAD_TIME", Message: "requested time is too soon to book"}

	ErrSlotTaken = &Error{Kind: KindConflict, Code: "SLOT_TAKEN", Message: "requested time is already booked"}
)

// InvalidArgument builds an input error with a caller-facing message.
func InvalidArgument(msg string) error {
	return ErrInvalidArgument.WithMessage(msg)
}

// AsError extracts the domain error from err's chain.
func AsError(err error) (*Error, bool) {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr, true
	}
	return nil, false
}

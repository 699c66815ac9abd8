// Package fault defines the error kinds shared by the attendance client.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	Other Kind = iota
	Unauthenticated
	LocationUnavailable
	CameraUnavailable
	NoActiveStream
	MissingArtifact
	TransportError
	Rejected
	// Busy: a submission is already in flight.
	Busy
	// InvalidState: the operation is not allowed in the current step.
	InvalidState
	// InvalidInput: a request field is missing or malformed.
	InvalidInput
)

var kindNames = map[Kind]string{
	Other:               "other",
	Unauthenticated:     "unauthenticated",
	LocationUnavailable: "location_unavailable",
	CameraUnavailable:   "camera_unavailable",
	NoActiveStream:      "no_active_stream",
	MissingArtifact:     "missing_artifact",
	TransportError:      "transport_error",
	Rejected:            "rejected",
	Busy:                "busy",
	InvalidState:        "invalid_state",
	InvalidInput:        "invalid_input",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

var (
	ErrUnauthenticated     = &Error{Kind: Unauthenticated}
	ErrLocationUnavailable = &Error{Kind: LocationUnavailable}
	ErrCameraUnavailable   = &Error{Kind: CameraUnavailable}
	ErrNoActiveStream      = &Error{Kind: NoActiveStream}
	ErrMissingArtifact     = &Error{Kind: MissingArtifact}
	ErrTransport           = &Error{Kind: TransportError}
	ErrRejected            = &Error{Kind: Rejected}
	ErrBusy                = &Error{Kind: Busy}
	ErrInvalidState        = &Error{Kind: InvalidState}
	ErrInvalidInput        = &Error{Kind: InvalidInput}
)

// E builds a classified error.
func E(kind Kind, op, message string) error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Other
}

// Message returns the human-facing message of err without the op prefix.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Message != "" {
			return fe.Message
		}
		if fe.Err != nil {
			return fe.Err.Error()
		}
		return fe.Kind.String()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

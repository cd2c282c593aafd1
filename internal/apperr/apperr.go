package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies failures the way callers need to react to them.
type Kind string

const (
	KindTimeMapping Kind = "time_mapping" // layout or clip reference bug, fatal to the export
	KindDecode      Kind = "decode"       // source frame unavailable, recoverable
	KindEncode      Kind = "encode"       // encoder or output IO failure, fatal
	KindEventData   Kind = "event_data"   // malformed or out-of-order samples, degrades to no signal
	KindCancelled   Kind = "cancelled"    // user initiated, not a failure
	KindSettings    Kind = "settings"     // invalid export settings
)

var (
	ErrExportInProgress = errors.New("export already running for this project")
	ErrCancelled        = errors.New("export cancelled")
	ErrInvalidClip      = errors.New("invalid clip")
	ErrZoomOverlap      = errors.New("zoom block overlaps an existing block")
	ErrEmptyZoomBlock   = errors.New("zoom block must have end > start")
)

// Error carries a Kind plus the frame it happened on, when there is one.
type Error struct {
	Kind  Kind
	Op    string
	Frame int // -1 when not tied to a frame
	Err   error
}

func (e *Error) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("%s: %s (frame %d): %v", e.Kind, e.Op, e.Frame, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Frame: -1, Err: err}
}

// AtFrame wraps err with a kind, operation name and frame index.
func AtFrame(kind Kind, op string, frame int, err error) *Error {
	return &Error{Kind: kind, Op: op, Frame: frame, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// Plain context cancellation is reported as KindCancelled.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

package face

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFace means the encoder found zero faces in the image.
	ErrNoFace = errors.New("no face detected")
	// ErrMultipleFaces means the encoder found more than one face.
	ErrMultipleFaces = errors.New("multiple faces detected")
	// ErrAlreadyRegistered means the identity already has a template.
	ErrAlreadyRegistered = errors.New("face already registered")
	// ErrNotRegistered means the identity has no template.
	ErrNotRegistered = errors.New("face not registered")
	// ErrEncoderUnavailable means the encoder gateway timed out or failed.
	ErrEncoderUnavailable = errors.New("encoder unavailable")
)

// PhotoError attaches the offending 1-based photo index to an encoder
// failure during batch enrollment.
type PhotoError struct {
	Index int
	Err   error
}

func (e *PhotoError) Error() string {
	return fmt.Sprintf("photo %d: %v", e.Index, e.Err)
}

func (e *PhotoError) Unwrap() error { return e.Err }

// InvalidPhotoCountError rejects enrollment batches outside the allowed range.
type InvalidPhotoCountError struct {
	Count int
	Min   int
	Max   int
}

func (e *InvalidPhotoCountError) Error() string {
	return fmt.Sprintf("invalid photo count %d: between %d and %d photos required", e.Count, e.Min, e.Max)
}

// LowConfidenceError rejects a check-in whose similarity is below the floor.
// It always carries the raw score so the caller can report it.
type LowConfidenceError struct {
	Score     float64
	Threshold float64
}

func (e *LowConfidenceError) Error() string {
	return fmt.Sprintf("confidence too low: %.2f (minimum %.2f)", e.Score, e.Threshold)
}

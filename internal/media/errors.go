package media

import (
	"visuallab/internal/domain"
)

// CaptureError reports that no still frame could be produced from a source.
type CaptureError struct {
	Source string
	Reason string
	Err    error
}

func (e *CaptureError) Error() string {
	msg := "capture " + e.Source + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CaptureError) Unwrap() error { return e.Err }

func (e *CaptureError) Is(target error) bool { return target == domain.ErrCapture }

// UserMessage is the text shown to end users.
func (e *CaptureError) UserMessage() string {
	return "Could not capture a frame: " + e.Reason + "."
}

func captureErr(source, reason string, err error) *CaptureError {
	return &CaptureError{Source: source, Reason: reason, Err: err}
}

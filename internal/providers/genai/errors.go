package genai

import (
	"fmt"
	"strings"

	"visuallab/internal/domain"
)

// ErrorKind classifies a failed call to the generative service.
type ErrorKind string

const (
	KindRateLimited  ErrorKind = "rate_limited"
	KindServiceError ErrorKind = "service_error"
	KindEmptyResult  ErrorKind = "empty_result"
)

// ServiceError is returned by every Client method that reaches the network.
type ServiceError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Attempts   int
	Err        error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("genai ")
	b.WriteString(string(e.Kind))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is lets callers classify with the domain sentinels.
func (e *ServiceError) Is(target error) bool {
	switch target {
	case domain.ErrServiceFailure:
		return e.Kind != KindEmptyResult
	case domain.ErrRateLimited:
		return e.Kind == KindRateLimited
	case domain.ErrEmptyResult:
		return e.Kind == KindEmptyResult
	}
	return false
}

// UserMessage is the text shown to end users for this failure.
func (e *ServiceError) UserMessage() string {
	switch e.Kind {
	case KindRateLimited:
		return "The generative service is busy. Please try again in a minute."
	case KindEmptyResult:
		return e.Message
	default:
		if e.Message != "" {
			return "Generation failed: " + e.Message
		}
		return "Generation failed."
	}
}

var rateLimitSignatures = []string{"429", "rate limit", "resource exhausted", "resource_exhausted", "too many requests"}

func hasRateLimitSignature(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

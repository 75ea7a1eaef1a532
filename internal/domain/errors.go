package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidPrompt      = errors.New("invalid prompt")
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio")
	ErrInvalidVariant     = errors.New("invalid analysis variant")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceFailure     = errors.New("generative service failure")
	ErrEmptyResult        = errors.New("empty result")
	ErrNoInput            = errors.New("no completed scenes to aggregate")
	ErrCapture            = errors.New("frame capture failed")
)

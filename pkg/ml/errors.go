package ml

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCategory     = errors.New("unknown category")
	ErrUnknownModel        = errors.New("model not loaded")
	ErrEnsembleUnavailable = errors.New("ensemble unavailable")
)

// ModelLoadError reports a required artifact that is missing or malformed.
type ModelLoadError struct {
	Artifact string
	Err      error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Artifact, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

func newLoadError(artifact string, err error) *ModelLoadError {
	return &ModelLoadError{Artifact: artifact, Err: err}
}

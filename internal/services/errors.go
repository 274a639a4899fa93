package services

import (
	"errors"
	"fmt"
)

// FailureKind classifies pipeline and lookup failures for the HTTP boundary.
type FailureKind string

const (
	KindInvalidInput            FailureKind = "invalid_input"
	KindNoDownloadableAsset     FailureKind = "no_downloadable_asset"
	KindDownloadFailed          FailureKind = "download_failed"
	KindDownloadTooLarge        FailureKind = "download_too_large"
	KindDownloadTimeout         FailureKind = "download_timeout"
	KindNotAnImage              FailureKind = "not_an_image"
	KindConversionFailed        FailureKind = "conversion_failed"
	KindTilingFailed            FailureKind = "tiling_failed"
	KindNotFound                FailureKind = "not_found"
	KindPersistenceInconsistent FailureKind = "persistence_inconsistent"
)

// PipelineError carries a FailureKind to the boundary with the stage's
// original diagnostic preserved in the chain.
type PipelineError struct {
	Kind FailureKind
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error { return e.Err }

func fail(kind FailureKind, err error) *PipelineError {
	return &PipelineError{Kind: kind, Err: err}
}

func failf(kind FailureKind, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) (FailureKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

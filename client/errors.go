package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/famomatic/mediaresolve/internal/orchestrator"
	"github.com/famomatic/mediaresolve/internal/types"
)

var (
	// ErrInvalidInput indicates an empty or malformed reference.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable indicates the media exists but cannot be provided.
	ErrUnavailable = errors.New("media unavailable")
	// ErrNoPlayableFormats indicates no usable formats were found.
	ErrNoPlayableFormats = errors.New("no playable formats")
	// ErrChallengeNotSolved indicates a stream token could not be decrypted.
	ErrChallengeNotSolved = errors.New("challenge not solved")
	// ErrAllEntriesFailed indicates every entry of a playlist failed.
	ErrAllEntriesFailed = errors.New("all entries failed")
	// ErrResolutionLoop indicates a circular or too deeply nested reference.
	ErrResolutionLoop = errors.New("resolution loop")
	// ErrExtractionFailed is the category of any other failure.
	ErrExtractionFailed = errors.New("extraction failed")

	ErrFormatNotAvailable = types.ErrFormatNotAvailable
	ErrGeoRestricted      = types.ErrGeoRestricted
	ErrDRMProtected       = types.ErrDRMProtected
	ErrNoExtractor        = types.ErrNoExtractor
)

// ErrorCategory is a stable, string-valued error class for callers that
// report or branch on failures.
type ErrorCategory string

const (
	ErrorCategoryNone               ErrorCategory = ""
	ErrorCategoryInvalidInput       ErrorCategory = "invalid_input"
	ErrorCategoryUnavailable        ErrorCategory = "unavailable"
	ErrorCategoryGeoRestricted      ErrorCategory = "geo_restricted"
	ErrorCategoryDRMProtected       ErrorCategory = "drm_protected"
	ErrorCategoryFormatNotAvailable ErrorCategory = "format_not_available"
	ErrorCategoryNoPlayableFormats  ErrorCategory = "no_playable_formats"
	ErrorCategoryChallengeNotSolved ErrorCategory = "challenge_not_solved"
	ErrorCategoryNoExtractor        ErrorCategory = "no_extractor"
	ErrorCategoryResolutionLoop     ErrorCategory = "resolution_loop"
	ErrorCategoryAllEntriesFailed   ErrorCategory = "all_entries_failed"
	ErrorCategoryCanceled           ErrorCategory = "canceled"
	ErrorCategoryUnknown            ErrorCategory = "unknown"
)

// ResolveError is returned by Resolve. It matches its category sentinel
// with errors.Is and unwraps to the underlying cause.
type ResolveError struct {
	Reference string
	Category  error
	// Failures is set when every playlist entry failed.
	Failures []Failure
	Err      error
}

func (e *ResolveError) Error() string {
	if e.Reference == "" {
		return fmt.Sprintf("%v: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Reference, e.Category, e.Err)
}

func (e *ResolveError) Is(target error) bool {
	return target == e.Category
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// ClassifyError maps err to an ErrorCategory.
func ClassifyError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ErrorCategoryNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryCanceled
	case errors.Is(err, ErrInvalidInput):
		return ErrorCategoryInvalidInput
	case errors.Is(err, ErrAllEntriesFailed):
		return ErrorCategoryAllEntriesFailed
	case errors.Is(err, ErrGeoRestricted):
		return ErrorCategoryGeoRestricted
	case errors.Is(err, ErrDRMProtected):
		return ErrorCategoryDRMProtected
	case errors.Is(err, ErrFormatNotAvailable):
		return ErrorCategoryFormatNotAvailable
	case errors.Is(err, ErrNoPlayableFormats):
		return ErrorCategoryNoPlayableFormats
	case errors.Is(err, ErrChallengeNotSolved):
		return ErrorCategoryChallengeNotSolved
	case errors.Is(err, ErrNoExtractor):
		return ErrorCategoryNoExtractor
	case errors.Is(err, ErrResolutionLoop):
		return ErrorCategoryResolutionLoop
	case errors.Is(err, ErrUnavailable):
		return ErrorCategoryUnavailable
	default:
		return ErrorCategoryUnknown
	}
}

// IsExpected reports whether err is a user-facing failure rather than a
// bug in an extractor or the decryption engine.
func IsExpected(err error) bool {
	var resolveErr *ResolveError
	if errors.As(err, &resolveErr) {
		if resolveErr.Category == ErrInvalidInput {
			return true
		}
		err = resolveErr.Err
	}
	var all *orchestrator.AllEntriesFailedError
	if errors.As(err, &all) {
		for _, f := range all.Failures {
			if !types.IsExpected(f.Err) {
				return false
			}
		}
		return len(all.Failures) > 0
	}
	return types.IsExpected(err)
}

func mapError(reference string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	out := &ResolveError{Reference: reference, Category: categoryOf(err), Err: err}
	var all *orchestrator.AllEntriesFailedError
	if errors.As(err, &all) {
		out.Failures = all.Failures
	}
	return out
}

func categoryOf(err error) error {
	var all *orchestrator.AllEntriesFailedError
	switch {
	case errors.As(err, &all):
		return ErrAllEntriesFailed
	case errors.Is(err, types.ErrGeoRestricted):
		return ErrGeoRestricted
	case errors.Is(err, types.ErrDRMProtected):
		return ErrDRMProtected
	case errors.Is(err, types.ErrFormatNotAvailable):
		return ErrFormatNotAvailable
	case errors.Is(err, types.ErrNoFormats):
		return ErrNoPlayableFormats
	case errors.Is(err, types.ErrPatternNotFound), errors.Is(err, types.ErrUnknownObfuscation):
		return ErrChallengeNotSolved
	case errors.Is(err, types.ErrCircularReference), errors.Is(err, types.ErrDepthExceeded):
		return ErrResolutionLoop
	case errors.Is(err, types.ErrNoExtractor):
		return ErrNoExtractor
	case types.IsExpected(err):
		return ErrUnavailable
	default:
		return ErrExtractionFailed
	}
}

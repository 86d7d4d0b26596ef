package types

import (
	"errors"
	"strings"
)

var (
	// ErrFormatNotAvailable indicates no format satisfies the selection.
	ErrFormatNotAvailable = errors.New("requested format not available")

	// ErrPatternNotFound indicates a client script no longer matches the known shapes.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrUnknownObfuscation indicates a helper function could not be classified.
	ErrUnknownObfuscation = errors.New("unknown obfuscation function type")

	// ErrCircularReference indicates a reference that leads back to itself.
	ErrCircularReference = errors.New("circular reference")

	// ErrDepthExceeded indicates resolution nested too deep.
	ErrDepthExceeded = errors.New("maximum resolution depth exceeded")

	// ErrGeoRestricted indicates the media is not available in this region.
	ErrGeoRestricted = errors.New("geo restricted")

	// ErrDRMProtected indicates every format is DRM protected.
	ErrDRMProtected = errors.New("drm protected")

	// ErrNoExtractor indicates no registered extractor matches a reference.
	ErrNoExtractor = errors.New("no suitable extractor")

	// ErrNoFormats indicates a single result ended up with no usable formats.
	ErrNoFormats = errors.New("no playable formats")
)

// ExtractionError reports that one reference could not be resolved.
type ExtractionError struct {
	Reference string
	Extractor string
	Msg       string
	// Expected marks user-facing failures that are not bugs.
	Expected bool
	Err      error
}

func (e *ExtractionError) Error() string {
	var sb strings.Builder
	if e.Extractor != "" {
		sb.WriteString("[" + e.Extractor + "] ")
	}
	if e.Reference != "" {
		sb.WriteString(e.Reference + ": ")
	}
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if msg == "" {
		msg = "extraction failed"
	}
	sb.WriteString(msg)
	return sb.String()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsExpected reports whether err is a user-facing failure.
// Engine-internal pattern failures are never expected.
func IsExpected(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrPatternNotFound),
		errors.Is(err, ErrUnknownObfuscation),
		errors.Is(err, ErrCircularReference):
		return false
	case errors.Is(err, ErrGeoRestricted),
		errors.Is(err, ErrDRMProtected),
		errors.Is(err, ErrFormatNotAvailable):
		return true
	}
	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return extractionErr.Expected
	}
	return false
}

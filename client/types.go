package client

import (
	"github.com/famomatic/mediaresolve/internal/extractor"
	"github.com/famomatic/mediaresolve/internal/orchestrator"
	"github.com/famomatic/mediaresolve/internal/types"
)

type (
	// Format describes one stream of a resolved video.
	Format = types.Format
	// Fragment is one addressable piece of a segmented stream.
	Fragment = types.Fragment
	// Subtitle is one subtitle track.
	Subtitle = types.Subtitle
	// Metadata is the descriptive data of a result.
	Metadata = types.Metadata
	// Result is a raw extraction result node.
	Result = types.Result
	// ManifestRef points at a manifest to expand into formats.
	ManifestRef = types.ManifestRef
	// Challenge is an obfuscated token attached to a format.
	Challenge = types.Challenge

	// Resolution is the flattened outcome of one reference.
	Resolution = orchestrator.Resolution
	// Entry is one resolved video of a Resolution.
	Entry = orchestrator.Entry
	// Failure is one playlist entry that could not be resolved.
	Failure = orchestrator.Failure

	// Extractor turns a reference into a raw Result.
	Extractor = extractor.Extractor
	// ExtractorFunc adapts plain functions to an Extractor.
	ExtractorFunc = extractor.Func
)

// ErrNotMatched is returned by an extractor that declines a reference
// after inspecting it. The next candidate is tried.
var ErrNotMatched = extractor.ErrNotMatched

// Outcome is the result of one reference in a batch.
type Outcome struct {
	Reference  string
	Resolution *Resolution
	Err        error
}

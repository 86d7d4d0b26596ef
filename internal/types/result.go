package types

import "net/http"

// ResultKind tags the variant of a Result.
type ResultKind string

const (
	// KindSingle carries formats directly.
	KindSingle ResultKind = "single"
	// KindPlaylist is an ordered list of child results.
	KindPlaylist ResultKind = "playlist"
	// KindURL points at another reference.
	KindURL ResultKind = "url"
	// KindMultiVideo is a fixed set of sibling references, e.g. camera feeds.
	KindMultiVideo ResultKind = "multi_video"
)

// ManifestKind names a manifest family.
type ManifestKind string

const (
	ManifestHLS  ManifestKind = "hls"
	ManifestDASH ManifestKind = "dash"
	ManifestISM  ManifestKind = "ism"
)

// ManifestRef is a manifest that should be expanded into formats.
type ManifestRef struct {
	URL            string
	Kind           ManifestKind
	FormatIDPrefix string
	Preference     int
	// NonFatal turns a fetch or parse failure into a warning. By default
	// it fails the whole result.
	NonFatal  bool
	Headers   http.Header
	Challenge *Challenge
}

// Result is the raw output of an extractor.
type Result struct {
	Kind     ResultKind
	Metadata Metadata

	// single
	Formats   []Format
	Manifests []ManifestRef
	Subtitles map[string][]Subtitle

	// playlist, multi_video
	Entries []*Result
	Atomic  bool

	// url
	Reference   string
	Extractor   string
	Transparent bool
}

// Single builds a single result.
func Single(meta Metadata, formats ...Format) *Result {
	return &Result{Kind: KindSingle, Metadata: meta, Formats: formats}
}

// Indirect builds an indirection to reference handled by extractor.
// An empty extractor means "first matching extractor".
func Indirect(reference, extractor string, transparent bool) *Result {
	return &Result{Kind: KindURL, Reference: reference, Extractor: extractor, Transparent: transparent}
}

// Playlist builds a playlist result.
func Playlist(meta Metadata, entries ...*Result) *Result {
	return &Result{Kind: KindPlaylist, Metadata: meta, Entries: entries}
}

// MultiVideo builds a multi_video result.
func MultiVideo(meta Metadata, atomic bool, entries ...*Result) *Result {
	return &Result{Kind: KindMultiVideo, Metadata: meta, Entries: entries, Atomic: atomic}
}

package generic

import (
	"context"
	"strings"

	"github.com/samber/mo"

	"github.com/famomatic/mediaresolve/internal/extractor"
	"github.com/famomatic/mediaresolve/internal/types"
)

type manifest struct{}

// NewManifest handles URLs pointing straight at an HLS, DASH or Smooth
// Streaming manifest.
func NewManifest() extractor.Extractor {
	return manifest{}
}

func (manifest) Name() string { return "manifest" }

func (manifest) Match(reference string) bool {
	return manifestKind(reference).IsPresent()
}

func (manifest) Resolve(_ context.Context, reference string) (*types.Result, error) {
	kind, ok := manifestKind(reference).Get()
	if !ok {
		return nil, extractor.ErrNotMatched
	}
	u, _ := parseHTTPURL(reference)
	prefix := string(kind)
	if kind == types.ManifestISM {
		prefix = "mss"
	}
	title := titleOf(u)
	res := types.Single(types.Metadata{ID: title, Title: title})
	res.Manifests = []types.ManifestRef{{
		URL:            u.String(),
		Kind:           kind,
		FormatIDPrefix: prefix,
	}}
	return res, nil
}

func manifestKind(reference string) mo.Option[types.ManifestKind] {
	u, ok := parseHTTPURL(reference)
	if !ok {
		return mo.None[types.ManifestKind]()
	}
	p := strings.ToLower(u.Path)
	switch {
	case strings.HasSuffix(p, ".m3u8"), strings.HasSuffix(p, ".m3u"):
		return mo.Some(types.ManifestHLS)
	case strings.HasSuffix(p, ".mpd"):
		return mo.Some(types.ManifestDASH)
	case strings.HasSuffix(p, ".ism/manifest"), strings.HasSuffix(p, ".isml/manifest"):
		return mo.Some(types.ManifestISM)
	}
	return mo.None[types.ManifestKind]()
}

package generic

import (
	"context"
	"strings"

	"github.com/famomatic/mediaresolve/internal/extractor"
	"github.com/famomatic/mediaresolve/internal/types"
)

type direct struct{}

// NewDirect handles URLs pointing straight at a media file.
func NewDirect() extractor.Extractor {
	return direct{}
}

func (direct) Name() string { return "direct" }

func (direct) Match(reference string) bool {
	u, ok := parseHTTPURL(reference)
	return ok && mediaExtensions[extOf(u)]
}

func (direct) Resolve(_ context.Context, reference string) (*types.Result, error) {
	u, ok := parseHTTPURL(reference)
	if !ok || !mediaExtensions[extOf(u)] {
		return nil, extractor.ErrNotMatched
	}
	ext := strings.TrimPrefix(extOf(u), ".")
	f := types.Format{
		FormatID: ext,
		URL:      u.String(),
		Protocol: types.ProtocolHTTPS,
		Ext:      ext,
	}
	if audioExtensions[extOf(u)] {
		f.VideoCodec = types.CodecNone
	}
	title := titleOf(u)
	return types.Single(types.Metadata{ID: title, Title: title}, f), nil
}

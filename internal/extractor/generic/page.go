package generic

import (
	"context"

	"github.com/samber/lo"

	"github.com/famomatic/mediaresolve/internal/embed"
	"github.com/famomatic/mediaresolve/internal/extractor"
	"github.com/famomatic/mediaresolve/internal/fetch"
	"github.com/famomatic/mediaresolve/internal/types"
)

type page struct {
	fetcher fetch.Fetcher
}

// NewPage handles any web page by looking for embedded media references.
// One reference becomes a transparent indirection, several a playlist.
func NewPage(fetcher fetch.Fetcher) extractor.Extractor {
	return &page{fetcher: fetcher}
}

func (*page) Name() string { return "page" }

func (*page) Match(reference string) bool {
	_, ok := parseHTTPURL(reference)
	return ok
}

func (p *page) Resolve(ctx context.Context, reference string) (*types.Result, error) {
	u, ok := parseHTTPURL(reference)
	if !ok {
		return nil, extractor.ErrNotMatched
	}
	pageURL := u.String()
	body, err := p.fetcher.Fetch(ctx, pageURL, nil)
	if err != nil {
		return nil, err
	}
	markup := string(body)
	refs, err := embed.ExtractReferences(markup, pageURL)
	if err != nil {
		return nil, err
	}
	refs = lo.Without(refs, pageURL)
	if len(refs) == 0 {
		return nil, &types.ExtractionError{Msg: "no embedded media found", Expected: true}
	}

	meta := types.Metadata{ID: titleOf(u), Title: lo.CoalesceOrEmpty(embed.Title(markup), titleOf(u))}
	if len(refs) == 1 {
		res := types.Indirect(refs[0], "", true)
		res.Metadata = meta
		return res, nil
	}
	entries := lo.Map(refs, func(ref string, _ int) *types.Result {
		return types.Indirect(ref, "", false)
	})
	return types.Playlist(meta, entries...), nil
}

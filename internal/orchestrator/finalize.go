package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/samber/lo"

	"github.com/famomatic/mediaresolve/internal/challenge"
	"github.com/famomatic/mediaresolve/internal/formats"
	"github.com/famomatic/mediaresolve/internal/selector"
	"github.com/famomatic/mediaresolve/internal/types"
)

const defaultTokenParam = "signature"

// finalize turns a raw single node into an Entry: manifests are expanded,
// tokens decrypted, and formats that cannot be used are dropped.
func (e *Engine) finalize(ctx context.Context, t task, node *types.Result, meta types.Metadata) (Entry, []string, error) {
	contextID := lo.CoalesceOrEmpty(meta.ID, t.reference)
	var warnings []string
	warnf := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		if contextID != "" {
			msg = contextID + ": " + msg
		}
		warnings = append(warnings, msg)
	}

	list := lo.Map(node.Formats, func(f types.Format, _ int) types.Format { return f.Clone() })
	subtitles := make(map[string][]types.Subtitle, len(node.Subtitles))
	for lang, subs := range node.Subtitles {
		subtitles[lang] = slices.Clone(subs)
	}

	manifestDRM := false
	for _, ref := range node.Manifests {
		if err := ctx.Err(); err != nil {
			return Entry{}, warnings, err
		}
		m, err := formats.Extract(ctx, e.fetcher, ref.Kind, ref.URL, formats.ExtractOptions{
			Options: formats.Options{
				FormatIDPrefix: ref.FormatIDPrefix,
				Preference:     ref.Preference,
				Headers:        ref.Headers,
				ContextID:      contextID,
			},
			NonFatal:   ref.NonFatal,
			RewriteURL: e.manifestRewriter(ref.Challenge),
		})
		if err != nil {
			return Entry{}, warnings, wrapError(t.reference, t.extractor, err)
		}
		warnings = append(warnings, m.Warnings...)
		list = append(list, m.Formats...)
		for lang, subs := range m.Subtitles {
			subtitles[lang] = append(subtitles[lang], subs...)
		}
		manifestDRM = manifestDRM || m.DRM
		if m.IsLive {
			meta.IsLive = true
		}
	}

	list, err := e.decryptFormats(ctx, list, warnf)
	if err != nil {
		return Entry{}, warnings, err
	}

	list = lo.Filter(list, func(f types.Format, _ int) bool {
		if !types.IsPlayable(f) {
			warnf("dropping format %q: not playable", f.FormatID)
			return false
		}
		if err := types.Validate(f); err != nil {
			warnf("dropping format %q: %v", f.FormatID, err)
			return false
		}
		return true
	})

	unprotected := lo.Filter(list, func(f types.Format, _ int) bool { return !f.HasDRM })
	if len(unprotected) == 0 && (len(list) > 0 || manifestDRM) {
		return Entry{}, warnings, &types.ExtractionError{Reference: t.reference, Extractor: t.extractor, Expected: true, Err: types.ErrDRMProtected}
	}
	if dropped := len(list) - len(unprotected); dropped > 0 {
		warnf("dropping %d DRM protected format(s)", dropped)
	}
	list = uniqueFormatIDs(unprotected)
	if len(list) == 0 {
		return Entry{}, warnings, &types.ExtractionError{Reference: t.reference, Extractor: t.extractor, Err: types.ErrNoFormats}
	}

	result := &types.Result{Kind: types.KindSingle, Metadata: meta, Formats: list}
	if len(subtitles) > 0 {
		result.Subtitles = subtitles
	}
	entry := Entry{Result: result, Reference: t.reference, Extractor: t.extractor}
	if e.selection != nil {
		selected, err := selector.Select(list, e.selection)
		if err != nil {
			return Entry{}, warnings, &types.ExtractionError{Reference: t.reference, Extractor: t.extractor, Expected: true, Err: err}
		}
		entry.Selected = selected
	}
	return entry, warnings, nil
}

// decryptFormats solves the tokens of every token-protected format, one
// script load per client script. Formats whose token cannot be solved are
// dropped; the others are kept.
func (e *Engine) decryptFormats(ctx context.Context, list []types.Format, warnf func(string, ...any)) ([]types.Format, error) {
	protected := lo.Filter(list, func(f types.Format, _ int) bool { return f.Challenge != nil })
	if len(protected) == 0 {
		return list, nil
	}

	solvers := make(map[string]challenge.BatchSolver)
	if len(e.providers) > 0 {
		scripts := lo.Uniq(lo.FilterMap(protected, func(f types.Format, _ int) (string, bool) {
			return f.Challenge.ScriptURL, f.Challenge.ScriptURL != ""
		}))
		for _, scriptURL := range scripts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			solver := challenge.NewFallbackProviderBatchSolver(e.providers...)
			for _, f := range protected {
				if f.Challenge.ScriptURL == scriptURL {
					solver.AddSig(f.Challenge.Token)
				}
			}
			if err := solver.Solve(ctx, scriptURL); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				warnf("client script %s: %v", scriptURL, err)
			}
			solvers[scriptURL] = solver
		}
	}

	out := make([]types.Format, 0, len(list))
	for _, f := range list {
		if f.Challenge == nil {
			out = append(out, f)
			continue
		}
		solver, ok := solvers[f.Challenge.ScriptURL]
		if !ok {
			warnf("dropping format %q: no decryption available for its token", f.FormatID)
			continue
		}
		sig, ok := solver.Sig(f.Challenge.Token)
		if !ok {
			warnf("dropping format %q: %v", f.FormatID, solveErr(solver, f.Challenge.Token))
			continue
		}
		rawURL, err := withToken(f.URL, f.Challenge.Param, sig)
		if err != nil {
			warnf("dropping format %q: %v", f.FormatID, err)
			continue
		}
		f.URL = rawURL
		f.Challenge = nil
		out = append(out, f)
	}
	return out, nil
}

// manifestRewriter returns the hook decrypting a manifest URL token before
// the manifest is fetched.
func (e *Engine) manifestRewriter(c *types.Challenge) func(context.Context, string) (string, error) {
	if c == nil {
		return nil
	}
	return func(ctx context.Context, manifestURL string) (string, error) {
		if len(e.providers) == 0 {
			return "", errNoProviders
		}
		solver := challenge.NewFallbackProviderBatchSolver(e.providers...)
		solver.AddSig(c.Token)
		if err := solver.Solve(ctx, c.ScriptURL); err != nil {
			return "", err
		}
		sig, ok := solver.Sig(c.Token)
		if !ok {
			return "", solveErr(solver, c.Token)
		}
		return withToken(manifestURL, c.Param, sig)
	}
}

func solveErr(solver challenge.BatchSolver, token string) error {
	if err := solver.Err(token); err != nil {
		return err
	}
	return errUnsolved
}

func withToken(rawURL, param, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(lo.CoalesceOrEmpty(param, defaultTokenParam), token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// uniqueFormatIDs suffixes repeated format ids with -1, -2, ... in order.
// Empty ids become the format's position.
func uniqueFormatIDs(list []types.Format) []types.Format {
	used := make(map[string]bool, len(list))
	counts := make(map[string]int)
	for i := range list {
		base := lo.CoalesceOrEmpty(list[i].FormatID, strconv.Itoa(i))
		id := base
		for used[id] {
			counts[base]++
			id = base + "-" + strconv.Itoa(counts[base])
		}
		used[id] = true
		list[i].FormatID = id
	}
	return list
}

package selector

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/famomatic/mediaresolve/internal/types"
)

// Select chooses formats based on the selector. Each merge group is tried in
// order; the first group whose every spec matches wins. best and worst
// always pick from the Sort order.
func Select(formats []types.Format, selector *Selector) ([]types.Format, error) {
	if selector == nil || len(selector.Fallbacks) == 0 {
		best := SelectBest(formats)
		if len(best) == 0 {
			return nil, types.ErrFormatNotAvailable
		}
		return best, nil
	}

	for _, group := range selector.Fallbacks {
		// A MergeGroup is a list of StreamSpecs (e.g. [video, audio])
		var selected []types.Format
		failed := false

		for _, spec := range group {
			candidate, ok := pick(formats, spec)
			if !ok {
				failed = true
				break
			}
			selected = append(selected, candidate)
		}

		if !failed {
			return selected, nil
		}
	}

	return nil, fmt.Errorf("%w: no format matches the selection", types.ErrFormatNotAvailable)
}

// SelectExpr parses expr and selects with it.
func SelectExpr(formats []types.Format, expr string) ([]types.Format, error) {
	sel, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return Select(formats, sel)
}

// SelectBest implements the default 'best' logic.
func SelectBest(formats []types.Format) []types.Format {
	f, ok := pick(formats, &StreamSpec{Filters: []FormatFilter{{Type: "builtin", Value: "best"}}})
	if !ok {
		return nil
	}
	return []types.Format{f}
}

func pick(formats []types.Format, spec *StreamSpec) (types.Format, bool) {
	candidates := lo.Filter(formats, func(f types.Format, _ int) bool {
		return matchesAll(f, spec.Filters)
	})
	if len(candidates) == 0 {
		return types.Format{}, false
	}

	worst := false
	separate := false
	for _, flt := range spec.Filters {
		switch flt.Type {
		case "builtin":
			worst = flt.Value == "worst"
			// best and worst pick among formats carrying both tracks. Without
			// any, they fall back to single-track formats only when all of
			// them carry the same kind of track.
			if combined := lo.Filter(candidates, func(f types.Format, _ int) bool { return hasBothTracks(f) }); len(combined) > 0 {
				candidates = combined
			} else if !lo.EveryBy(candidates, types.Format.HasVideo) && !lo.EveryBy(candidates, types.Format.HasAudio) {
				return types.Format{}, false
			}
		case "media":
			worst = flt.Op == "worst"
			separate = true
		}
	}

	sorted := Sort(candidates, SortOptions{SeparateTracks: separate})
	if worst {
		return sorted[len(sorted)-1], true
	}
	return sorted[0], true
}

func matchesAll(f types.Format, filters []FormatFilter) bool {
	for _, flt := range filters {
		if !matches(f, flt) {
			return false
		}
	}
	return true
}

func matches(f types.Format, filter FormatFilter) bool {
	switch filter.Type {
	case "builtin":
		return true
	case "media":
		if filter.Value == "video" {
			return f.HasVideo() && f.AudioCodec == types.CodecNone
		}
		if filter.Value == "audio" {
			return f.HasAudio() && f.VideoCodec == types.CodecNone
		}
		return false
	}

	if v, ok := numericField(f, filter.Type); ok {
		// Zero means unknown, except for preference where it is a real value.
		if v == 0 && filter.Type != "preference" {
			return filter.Optional
		}
		want, err := parseNumber(filter.Value)
		if err != nil {
			return false
		}
		return checkOp(v, want, filter.Op)
	}
	if v, ok := stringField(f, filter.Type); ok {
		if v == "" {
			return filter.Optional
		}
		return checkStringOp(v, filter.Value, filter.Op)
	}
	return false
}

func numericField(f types.Format, key string) (float64, bool) {
	switch key {
	case "height":
		return float64(f.Height), true
	case "width":
		return float64(f.Width), true
	case "fps":
		return f.FPS, true
	case "tbr":
		return f.Bitrate(), true
	case "vbr":
		return f.VideoBitrate, true
	case "abr":
		return f.AudioBitrate, true
	case "asr":
		return float64(f.SampleRate), true
	case "filesize":
		return float64(f.Filesize), true
	case "preference":
		return float64(f.Preference), true
	}
	return 0, false
}

func stringField(f types.Format, key string) (string, bool) {
	switch key {
	case "ext":
		return f.Ext, true
	case "vcodec":
		return f.VideoCodec, true
	case "acodec":
		return f.AudioCodec, true
	case "protocol":
		return string(f.Protocol), true
	case "format_id":
		return f.FormatID, true
	case "language":
		return f.Language, true
	}
	return "", false
}

func checkOp(a, b float64, op string) bool {
	switch op {
	case "=":
		return a == b
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	case "!=":
		return a != b
	}
	return false
}

func checkStringOp(a, b, op string) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	case "^=":
		return strings.HasPrefix(a, b)
	case "$=":
		return strings.HasSuffix(a, b)
	case "*=":
		return strings.Contains(a, b)
	}
	return false
}

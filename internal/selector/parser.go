package selector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Selector represents a parsed format selection strategy.
type Selector struct {
	// Fallbacks: Each element is a Merge Group.
	// We try the first Merge Group. If it fails, try the next.
	Fallbacks []MergeGroup
}

// MergeGroup is a list of StreamSpecs to be selected together and merged
// later. E.g. "bestvideo+bestaudio" -> [StreamSpec(video), StreamSpec(audio)]
type MergeGroup []*StreamSpec

// StreamSpec defines criteria for ONE stream.
// It can have multiple filters (e.g. bestvideo AND ext=mp4).
type StreamSpec struct {
	Filters []FormatFilter
}

// FormatFilter represents a single criterion.
//
// Type is one of builtin (best/worst), media (video/audio only with Op
// best/worst), format_id, or a field name such as height or ext.
type FormatFilter struct {
	Type  string
	Value string
	Op    string
	// Optional lets formats with an unknown field value pass.
	Optional bool
}

var (
	numericFields = []string{"height", "width", "fps", "tbr", "vbr", "abr", "asr", "filesize", "preference"}
	stringFields  = []string{"ext", "vcodec", "acodec", "protocol", "format_id", "language"}
	extShortcuts  = []string{"mp4", "webm", "m4a", "mp3", "flv", "3gp", "ogg", "aac", "wav", "opus", "mkv"}

	filterRegexp  = regexp.MustCompile(`^\s*([a-z_]+)\s*(<=|>=|!=|\^=|\$=|\*=|=|<|>|:)(\?)?\s*(.+?)\s*$`)
	resRegex      = regexp.MustCompile(`^(res|height|width)(:|<=|>=|=|<|>)(\d+)$`)
	numericRegexp = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([kKmMgG]i?[bB]?)?$`)
)

var fieldAliases = map[string]string{"res": "height", "lang": "language"}

// Parse parses a format selector string.
// Syntax: seg1+seg2/seg3
// Modifier syntax: bestvideo[ext=mp4][height<=?720]
func Parse(s string) (*Selector, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty format selector")
	}
	fallbackStrs, err := splitTopLevel(s, '/')
	if err != nil {
		return nil, err
	}
	var fallbacks []MergeGroup

	for _, fbStr := range fallbackStrs {
		mergeStrs, err := splitTopLevel(fbStr, '+')
		if err != nil {
			return nil, err
		}
		var group MergeGroup
		for _, mStr := range mergeStrs {
			spec, err := parseStreamSpec(strings.TrimSpace(mStr))
			if err != nil {
				return nil, err
			}
			group = append(group, spec)
		}
		fallbacks = append(fallbacks, group)
	}

	return &Selector{Fallbacks: fallbacks}, nil
}

// splitTopLevel splits s on sep outside of brackets.
func splitTopLevel(s string, sep byte) ([]string, error) {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ']' in selector %q", s)
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '[' in selector %q", s)
	}
	parts = append(parts, s[start:])
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("empty term in selector %q", s)
		}
	}
	return parts, nil
}

func parseStreamSpec(s string) (*StreamSpec, error) {
	// s = "bestvideo[ext=mp4]"
	idx := strings.Index(s, "[")
	var base string
	var mods string
	if idx == -1 {
		base = s
	} else {
		base = strings.TrimSpace(s[:idx])
		mods = s[idx:]
	}

	spec := &StreamSpec{}

	// A bare filter list applies to every format, like "best".
	if base == "" {
		base = "best"
	}
	f, err := parseFilter(base)
	if err != nil {
		return nil, err
	}
	spec.Filters = append(spec.Filters, *f)

	for mods != "" {
		if mods[0] != '[' {
			return nil, fmt.Errorf("unexpected %q after filters", mods)
		}
		end := strings.Index(mods, "]")
		f, err := parseModifier(mods[1:end])
		if err != nil {
			return nil, err
		}
		spec.Filters = append(spec.Filters, *f)
		mods = strings.TrimSpace(mods[end+1:])
	}

	return spec, nil
}

func parseModifier(s string) (*FormatFilter, error) {
	// s = "ext=mp4" or "height<=?720"
	m := filterRegexp.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("unknown modifier syntax: %s", s)
	}
	key, op, val := m[1], m[2], m[4]
	if alias, ok := fieldAliases[key]; ok {
		key = alias
	}
	if op == ":" {
		op = "="
	}
	flt := &FormatFilter{Type: key, Value: val, Op: op, Optional: m[3] == "?"}

	switch {
	case lo.Contains(numericFields, key):
		if op == "^=" || op == "$=" || op == "*=" {
			return nil, fmt.Errorf("operator %s is not valid for numeric field %s", op, key)
		}
		if _, err := parseNumber(val); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
	case lo.Contains(stringFields, key):
		if op == "<" || op == ">" || op == "<=" || op == ">=" {
			return nil, fmt.Errorf("operator %s is not valid for string field %s", op, key)
		}
		flt.Value = strings.Trim(val, `"'`)
	default:
		return nil, fmt.Errorf("unknown modifier key: %s", key)
	}
	return flt, nil
}

func parseFilter(s string) (*FormatFilter, error) {
	lower := strings.ToLower(s)

	switch lower {
	case "best", "b":
		return &FormatFilter{Type: "builtin", Value: "best"}, nil
	case "worst", "w":
		return &FormatFilter{Type: "builtin", Value: "worst"}, nil
	case "bestvideo", "bv":
		return &FormatFilter{Type: "media", Value: "video", Op: "best"}, nil
	case "worstvideo", "wv":
		return &FormatFilter{Type: "media", Value: "video", Op: "worst"}, nil
	case "bestaudio", "ba":
		return &FormatFilter{Type: "media", Value: "audio", Op: "best"}, nil
	case "worstaudio", "wa":
		return &FormatFilter{Type: "media", Value: "audio", Op: "worst"}, nil
	}

	// Extension shortcuts (mp4, webm)
	if lo.Contains(extShortcuts, lower) {
		return &FormatFilter{Type: "ext", Value: lower, Op: "="}, nil
	}

	// Resolution shortcut (res:1080)
	if matches := resRegex.FindStringSubmatch(lower); matches != nil {
		op := matches[2]
		if op == ":" {
			op = "="
		}
		return &FormatFilter{Type: lo.Ternary(matches[1] == "width", "width", "height"), Value: matches[3], Op: op}, nil
	}

	// Allow standalone modifier-style filters as base tokens, e.g.:
	// "fps!=60", "ext=mp4", "height<=720"
	if flt, err := parseModifier(s); err == nil {
		return flt, nil
	}

	// Anything else names a format id.
	if strings.ContainsAny(s, " []=<>!") {
		return nil, fmt.Errorf("unknown selector: %s", s)
	}
	return &FormatFilter{Type: "format_id", Value: s, Op: "="}, nil
}

// parseNumber parses a number with an optional k, M or G multiplier.
// Binary forms such as KiB use powers of 1024.
func parseNumber(raw string) (float64, error) {
	m := numericRegexp.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	suffix := strings.ToLower(m[2])
	if suffix == "" {
		return v, nil
	}
	base := 1000.0
	if strings.Contains(suffix, "i") {
		base = 1024
	}
	switch suffix[0] {
	case 'k':
		v *= base
	case 'm':
		v *= base * base
	case 'g':
		v *= base * base * base
	}
	return v, nil
}

package client

import (
	"strings"

	"github.com/famomatic/mediaresolve/internal/selector"
)

// DefaultSelection picks the best video and audio pair, or the best
// combined format when no pair exists.
const DefaultSelection = "bestvideo+bestaudio/best"

// Selection is a parsed format selection expression.
type Selection = selector.Selector

// ParseSelection parses a format selection expression such as
// "bestvideo[height<=1080]+bestaudio/best". An empty expression parses as
// DefaultSelection.
func ParseSelection(expr string) (*Selection, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultSelection
	}
	return selector.Parse(expr)
}

// Select returns the formats chosen by expr.
func Select(formats []Format, expr string) ([]Format, error) {
	sel, err := ParseSelection(expr)
	if err != nil {
		return nil, err
	}
	return selector.Select(formats, sel)
}

// Sort returns formats ordered best first. The input is not modified.
func Sort(formats []Format) []Format {
	return selector.Sort(formats)
}

// SortSeparate ranks formats for separate video and audio downloads, so a
// combined stream gets no bonus over a better single-track one.
func SortSeparate(formats []Format) []Format {
	return selector.Sort(formats, selector.SortOptions{SeparateTracks: true})
}

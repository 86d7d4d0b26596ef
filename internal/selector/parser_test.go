package selector

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected *Selector
		wantErr  bool
	}{
		{
			input: "best",
			expected: &Selector{
				Fallbacks: []MergeGroup{
					{
						{Filters: []FormatFilter{{Type: "builtin", Value: "best"}}},
					},
				},
			},
		},
		{
			input: "bestvideo+bestaudio",
			expected: &Selector{
				Fallbacks: []MergeGroup{
					{
						{Filters: []FormatFilter{{Type: "media", Value: "video", Op: "best"}}},
						{Filters: []FormatFilter{{Type: "media", Value: "audio", Op: "best"}}},
					},
				},
			},
		},
		{
			input: "bv[ext=mp4]+ba[ext=m4a]",
			expected: &Selector{
				Fallbacks: []MergeGroup{
					{
						{Filters: []FormatFilter{
							{Type: "media", Value: "video", Op: "best"},
							{Type: "ext", Value: "mp4", Op: "="},
						}},
						{Filters: []FormatFilter{
							{Type: "media", Value: "audio", Op: "best"},
							{Type: "ext", Value: "m4a", Op: "="},
						}},
					},
				},
			},
		},
		{
			input: "bestvideo[height<=?720][vcodec^=avc1]",
			expected: &Selector{
				Fallbacks: []MergeGroup{
					{
						{Filters: []FormatFilter{
							{Type: "media", Value: "video", Op: "best"},
							{Type: "height", Value: "720", Op: "<=", Optional: true},
							{Type: "vcodec", Value: "avc1", Op: "^="},
						}},
					},
				},
			},
		},
		{
			input: "bestvideo[width>=1920]/w",
			expected: &Selector{
				Fallbacks: []MergeGroup{
					{
						{Filters: []FormatFilter{
							{Type: "media", Value: "video", Op: "best"},
							{Type: "width", Value: "1920", Op: ">="},
						}},
					},
					{
						{Filters: []FormatFilter{{Type: "builtin", Value: "worst"}}},
					},
				},
			},
		},
		{
			input: "worstaudio/fps!=60",
			expected: &Selector{
				Fallbacks: []MergeGroup{
					{
						{Filters: []FormatFilter{{Type: "media", Value: "audio", Op: "worst"}}},
					},
					{
						{Filters: []FormatFilter{
							{Type: "fps", Value: "60", Op: "!="},
						}},
					},
				},
			},
		},
		{
			input: "hls-1200/res:720/webm",
			expected: &Selector{
				Fallbacks: []MergeGroup{
					{{Filters: []FormatFilter{{Type: "format_id", Value: "hls-1200", Op: "="}}}},
					{{Filters: []FormatFilter{{Type: "height", Value: "720", Op: "="}}}},
					{{Filters: []FormatFilter{{Type: "ext", Value: "webm", Op: "="}}}},
				},
			},
		},
		{
			input: "[filesize<50M][protocol*=http]",
			expected: &Selector{
				Fallbacks: []MergeGroup{
					{
						{Filters: []FormatFilter{
							{Type: "builtin", Value: "best"},
							{Type: "filesize", Value: "50M", Op: "<"},
							{Type: "protocol", Value: "http", Op: "*="},
						}},
					},
				},
			},
		},
		{input: "", wantErr: true},
		{input: "best/", wantErr: true},
		{input: "best[height<=720", wantErr: true},
		{input: "best[bogus=1]", wantErr: true},
		{input: "best[height^=7]", wantErr: true},
		{input: "best[ext>mp4]", wantErr: true},
		{input: "best[height<=tall]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Parse() = \n%#v\nwant \n%#v", got, tt.expected)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := map[string]float64{
		"720":   720,
		"1.5k":  1500,
		"50M":   50_000_000,
		"2G":    2_000_000_000,
		"1KiB":  1024,
		"3 MiB": 3 * 1024 * 1024,
	}
	for in, want := range tests {
		got, err := parseNumber(in)
		if err != nil || got != want {
			t.Fatalf("parseNumber(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseNumber("ten"); err == nil {
		t.Fatalf("parseNumber(ten) expected error")
	}
}

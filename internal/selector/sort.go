package selector

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/famomatic/mediaresolve/internal/types"
)

// containerOrder ranks containers from most to least desirable.
var containerOrder = []string{"mp4", "webm", "m4a", "mp3", "aac", "ogg", "opus", "flac", "mkv", "mov", "flv", "ts", "3gp"}

// DefaultProtocolBias is added to SourcePreference so manifest-derived
// formats outrank progressive ones with otherwise equal keys.
var DefaultProtocolBias = map[types.Protocol]int{
	types.ProtocolHLS:  1,
	types.ProtocolDASH: 1,
	types.ProtocolISM:  1,
}

// SortOptions tunes Sort.
type SortOptions struct {
	// SeparateTracks drops the preference for formats carrying both audio
	// and video, for selections that explicitly ask for a single track.
	SeparateTracks bool
	// ProtocolBias overrides DefaultProtocolBias.
	ProtocolBias map[types.Protocol]int
}

// Sort returns formats ordered best first. The sort is stable: formats that
// tie on every key keep their input order. The input is not modified.
func Sort(formats []types.Format, opts ...SortOptions) []types.Format {
	var opt SortOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	bias := opt.ProtocolBias
	if bias == nil {
		bias = DefaultProtocolBias
	}

	out := slices.Clone(formats)
	slices.SortStableFunc(out, func(a, b types.Format) int {
		return compareFormats(a, b, opt.SeparateTracks, bias)
	})
	return out
}

// compareFormats orders a before b when a is the better format.
func compareFormats(a, b types.Format, separate bool, bias map[types.Protocol]int) int {
	if !separate {
		if c := cmp.Compare(boolRank(hasBothTracks(b)), boolRank(hasBothTracks(a))); c != 0 {
			return c
		}
	}
	keys := [][2]float64{
		{float64(a.Preference), float64(b.Preference)},
		{a.Quality, b.Quality},
		{float64(a.Height), float64(b.Height)},
		{float64(a.Width), float64(b.Width)},
		{a.FPS, b.FPS},
		{videoBitrate(a), videoBitrate(b)},
		{float64(a.SampleRate), float64(b.SampleRate)},
		{a.AudioBitrate, b.AudioBitrate},
		{float64(-containerRank(a.Ext)), float64(-containerRank(b.Ext))},
		{float64(a.SourcePreference + bias[a.Protocol]), float64(b.SourcePreference + bias[b.Protocol])},
	}
	for _, k := range keys {
		if c := cmp.Compare(k[1], k[0]); c != 0 {
			return c
		}
	}
	return 0
}

func hasBothTracks(f types.Format) bool {
	return f.HasVideo() && f.HasAudio()
}

func boolRank(v bool) int {
	if v {
		return 1
	}
	return 0
}

// videoBitrate falls back to the total bitrate when the video share is
// unknown.
func videoBitrate(f types.Format) float64 {
	if f.VideoBitrate > 0 {
		return f.VideoBitrate
	}
	return f.TotalBitrate
}

// containerRank is the position of ext in containerOrder; unknown
// containers rank last.
func containerRank(ext string) int {
	if idx := lo.IndexOf(containerOrder, ext); idx >= 0 {
		return idx
	}
	return len(containerOrder)
}

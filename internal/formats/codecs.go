package formats

import (
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/famomatic/mediaresolve/internal/types"
)

var (
	videoCodecs = []string{
		"avc1", "avc2", "avc3", "avc4", "vp9", "vp09", "vp8", "hev1", "hev2",
		"h263", "h264", "mp4v", "hvc1", "av01", "theora", "dvh1", "dvhe",
	}
	audioCodecs = []string{
		"mp4a", "opus", "vorbis", "mp3", "aac", "ac-3", "ec-3", "eac3",
		"dtsc", "dtse", "dtsh", "dtsl", "flac", "alac",
	}
)

// Codecs is the outcome of parsing a CODECS style attribute.
type Codecs struct {
	Video string
	Audio string
}

// ParseCodecs splits a comma separated codec list into its video and audio
// codec. A list with a recognized codec reports the other kind as
// types.CodecNone. Unrecognized pairs are taken as video,audio. Anything
// else yields mo.None.
func ParseCodecs(raw string) mo.Option[Codecs] {
	parts := lo.FilterMap(strings.Split(strings.Trim(strings.TrimSpace(raw), ","), ","), func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
	if len(parts) == 0 {
		return mo.None[Codecs]()
	}

	var out Codecs
	for _, full := range parts {
		family := strings.ToLower(strings.SplitN(full, ".", 2)[0])
		switch {
		case lo.Contains(videoCodecs, family):
			if out.Video == "" {
				out.Video = full
			}
		case lo.Contains(audioCodecs, family):
			if out.Audio == "" {
				out.Audio = full
			}
		}
	}
	if out.Video == "" && out.Audio == "" {
		if len(parts) == 2 {
			return mo.Some(Codecs{Video: parts[0], Audio: parts[1]})
		}
		return mo.None[Codecs]()
	}
	if out.Video == "" {
		out.Video = types.CodecNone
	}
	if out.Audio == "" {
		out.Audio = types.CodecNone
	}
	return mo.Some(out)
}

// ParseM3U8Attributes parses an HLS attribute list such as
// BANDWIDTH=800000,CODECS="avc1.4d401f,mp4a.40.2".
func ParseM3U8Attributes(raw string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attributeRegexp.FindAllStringSubmatch(raw, -1) {
		attrs[m[1]] = strings.Trim(m[2], `"`)
	}
	return attrs
}

// mimeTypeExt maps a MIME type to a container extension.
func mimeTypeExt(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch mimeType {
	case "":
		return ""
	case "audio/mp4":
		return "m4a"
	case "audio/mpeg":
		return "mp3"
	case "video/mp2t":
		return "ts"
	case "text/vtt":
		return "vtt"
	case "application/ttml+xml":
		return "ttml"
	case "application/x-mpegurl", "application/vnd.apple.mpegurl":
		return "m3u8"
	case "application/dash+xml":
		return "mpd"
	}
	_, sub, _ := strings.Cut(mimeType, "/")
	return strings.TrimPrefix(sub, "x-")
}

package formats

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/famomatic/mediaresolve/internal/fetch"
	"github.com/famomatic/mediaresolve/internal/types"
)

var (
	attributeRegexp      = regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^",]*)`)
	fairPlayRegexp       = regexp.MustCompile(`#EXT-X-SESSION-KEY:.*?URI="skd://`)
	resolutionRegexp     = regexp.MustCompile(`^(\d+)[xX](\d+)$`)
	onTheFlyNumberRegexp = regexp.MustCompile(`\$(?:Number|Time)(?:%0?\d*d)?\$|\{segment\}`)
)

// ParseHLSManifest parses an HLS master or media playlist into formats.
// Every variant of a master playlist becomes one format, in source order.
// Alternate renditions are attached to the variants that reference their
// group and are never merged into them.
func ParseHLSManifest(doc, manifestURL string, opts Options) (*Manifest, error) {
	if !strings.HasPrefix(strings.TrimSpace(doc), "#EXTM3U") {
		return nil, fmt.Errorf("not an m3u8 playlist")
	}
	if opts.Ext == "" {
		opts.Ext = "mp4"
	}

	m := newManifest()
	if strings.Contains(doc, "#EXT-X-FAXS-CM:") || fairPlayRegexp.MatchString(doc) {
		m.DRM = true
		m.warnf(opts, "hls manifest %s is DRM protected", manifestURL)
		return m, nil
	}

	if strings.Contains(doc, "#EXT-X-TARGETDURATION") {
		playlist, err := ParseMediaPlaylist(doc, manifestURL)
		if err != nil {
			return nil, err
		}
		m.IsLive = playlist.IsLive()
		m.Formats = append(m.Formats, types.Format{
			FormatID:          opts.FormatIDPrefix,
			URL:               manifestURL,
			ManifestURL:       manifestURL,
			Protocol:          types.ProtocolHLS,
			Ext:               opts.Ext,
			Preference:        opts.Preference,
			Headers:           fetch.CloneHeader(opts.Headers),
			FragmentsDeferred: true,
			IsLive:            m.IsLive,
		})
		return m, nil
	}

	lines := playlistLines(doc)
	renditions := collectRenditions(lines, manifestURL)
	groups := lo.GroupBy(renditions, func(r types.Rendition) string { return r.GroupID })
	for _, r := range renditions {
		if r.Type == "SUBTITLES" && r.URL != "" {
			m.addSubtitle(r.Language, types.Subtitle{URL: r.URL, Ext: "vtt", Language: r.Language, Name: r.Name})
		}
	}

	var streamInf map[string]string
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := ParseM3U8Attributes(line[len("#EXT-X-MEDIA:"):])
			if f, ok := renditionFormat(m, attrs, manifestURL, opts); ok {
				m.Formats = append(m.Formats, f)
			}
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			streamInf = ParseM3U8Attributes(line[len("#EXT-X-STREAM-INF:"):])
		case strings.HasPrefix(line, "#"):
		default:
			if streamInf == nil {
				continue
			}
			attrs := streamInf
			streamInf = nil
			if onTheFlyNumberRegexp.MatchString(line) {
				m.warnf(opts, "variant %s needs on-the-fly segment numbering; skipping", line)
				continue
			}
			m.Formats = append(m.Formats, variantFormat(attrs, resolveURL(manifestURL, line), manifestURL, groups, len(m.Formats), opts))
		}
	}
	return m, nil
}

func playlistLines(doc string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(doc))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func collectRenditions(lines []string, manifestURL string) []types.Rendition {
	var out []types.Rendition
	for _, line := range lines {
		if !strings.HasPrefix(line, "#EXT-X-MEDIA:") {
			continue
		}
		attrs := ParseM3U8Attributes(line[len("#EXT-X-MEDIA:"):])
		r := types.Rendition{
			Type:     attrs["TYPE"],
			GroupID:  attrs["GROUP-ID"],
			Name:     attrs["NAME"],
			Language: attrs["LANGUAGE"],
			Default:  attrs["DEFAULT"] == "YES",
		}
		if uri := attrs["URI"]; uri != "" {
			r.URL = resolveURL(manifestURL, uri)
		}
		out = append(out, r)
	}
	return out
}

// renditionFormat turns an audio or video rendition with its own playlist
// into a standalone format.
func renditionFormat(m *Manifest, attrs map[string]string, manifestURL string, opts Options) (types.Format, bool) {
	mediaType := attrs["TYPE"]
	uri := attrs["URI"]
	if uri == "" || (mediaType != "AUDIO" && mediaType != "VIDEO") {
		return types.Format{}, false
	}
	if onTheFlyNumberRegexp.MatchString(uri) {
		m.warnf(opts, "rendition %s needs on-the-fly segment numbering; skipping", uri)
		return types.Format{}, false
	}
	f := types.Format{
		FormatID:          joinID(opts.FormatIDPrefix, attrs["GROUP-ID"], attrs["NAME"]),
		URL:               resolveURL(manifestURL, uri),
		ManifestURL:       manifestURL,
		Protocol:          types.ProtocolHLS,
		Ext:               opts.Ext,
		Language:          attrs["LANGUAGE"],
		Preference:        opts.Preference,
		Headers:           fetch.CloneHeader(opts.Headers),
		FragmentsDeferred: true,
	}
	if mediaType == "AUDIO" {
		f.VideoCodec = types.CodecNone
	}
	return f, true
}

func variantFormat(attrs map[string]string, variantURL, manifestURL string, groups map[string][]types.Rendition, index int, opts Options) types.Format {
	f := types.Format{
		URL:               variantURL,
		ManifestURL:       manifestURL,
		Protocol:          types.ProtocolHLS,
		Ext:               opts.Ext,
		Preference:        opts.Preference,
		Headers:           fetch.CloneHeader(opts.Headers),
		FragmentsDeferred: true,
	}

	bandwidth := attrs["AVERAGE-BANDWIDTH"]
	if bandwidth == "" {
		bandwidth = attrs["BANDWIDTH"]
	}
	if bw, err := strconv.ParseFloat(bandwidth, 64); err == nil && bw > 0 {
		f.TotalBitrate = bw / 1000
		f.FormatID = joinID(opts.FormatIDPrefix, strconv.Itoa(int(f.TotalBitrate)))
	} else {
		f.FormatID = joinID(opts.FormatIDPrefix, strconv.Itoa(index))
	}
	if res := resolutionRegexp.FindStringSubmatch(attrs["RESOLUTION"]); res != nil {
		f.Width, _ = strconv.Atoi(res[1])
		f.Height, _ = strconv.Atoi(res[2])
	}
	if fps, err := strconv.ParseFloat(attrs["FRAME-RATE"], 64); err == nil {
		f.FPS = fps
	}
	if codecs, ok := ParseCodecs(attrs["CODECS"]).Get(); ok {
		f.VideoCodec = codecs.Video
		f.AudioCodec = codecs.Audio
		// Audio carried by a separate rendition playlist is not in the variant.
		if group := groupOf(groups, "AUDIO", attrs["AUDIO"]); f.VideoCodec != types.CodecNone {
			if len(group) > 0 && group[0].URL != "" {
				f.AudioCodec = types.CodecNone
			}
		}
	}

	for _, key := range []string{"AUDIO", "VIDEO", "SUBTITLES", "CLOSED-CAPTIONS"} {
		f.Renditions = append(f.Renditions, groupOf(groups, key, attrs[key])...)
	}
	return f
}

func groupOf(groups map[string][]types.Rendition, mediaType, id string) []types.Rendition {
	if id == "" || id == "NONE" {
		return nil
	}
	return lo.Filter(groups[id], func(r types.Rendition, _ int) bool { return r.Type == mediaType })
}

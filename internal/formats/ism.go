package formats

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/famomatic/mediaresolve/internal/fetch"
	"github.com/famomatic/mediaresolve/internal/types"
)

type ismDocument struct {
	XMLName    xml.Name
	Duration   string           `xml:"Duration,attr"`
	TimeScale  string           `xml:"TimeScale,attr"`
	IsLive     string           `xml:"IsLive,attr"`
	Protection *struct{}        `xml:"Protection"`
	Streams    []ismStreamIndex `xml:"StreamIndex"`
}

type ismStreamIndex struct {
	Type      string            `xml:"Type,attr"`
	Name      string            `xml:"Name,attr"`
	Language  string            `xml:"Language,attr"`
	URL       string            `xml:"Url,attr"`
	TimeScale string            `xml:"TimeScale,attr"`
	Levels    []ismQualityLevel `xml:"QualityLevel"`
	Chunks    []struct {
		T string `xml:"t,attr"`
		D string `xml:"d,attr"`
		R string `xml:"r,attr"`
	} `xml:"c"`
}

type ismQualityLevel struct {
	FourCC             string `xml:"FourCC,attr"`
	AudioTag           string `xml:"AudioTag,attr"`
	Bitrate            string `xml:"Bitrate,attr"`
	MaxWidth           string `xml:"MaxWidth,attr"`
	MaxHeight          string `xml:"MaxHeight,attr"`
	Width              string `xml:"Width,attr"`
	Height             string `xml:"Height,attr"`
	SamplingRate       string `xml:"SamplingRate,attr"`
	Channels           string `xml:"Channels,attr"`
	BitsPerSample      string `xml:"BitsPerSample,attr"`
	NALUnitLengthField string `xml:"NALUnitLengthField,attr"`
	CodecPrivateData   string `xml:"CodecPrivateData,attr"`
}

const defaultISMTimescale = 10000000

var (
	supportedFourCCs   = []string{"AVC1", "H264", "AACL", "EC-3", "TTML"}
	bitrateTokenRegexp = regexp.MustCompile(`\{[Bb]itrate\}`)
	startTimeRegexp    = regexp.MustCompile(`\{start[ _]time\}`)
)

// ParseISMManifest parses a Smooth Streaming manifest. Protected and live
// presentations yield no formats.
func ParseISMManifest(doc []byte, manifestURL string, opts Options) (*Manifest, error) {
	var ism ismDocument
	if err := xml.Unmarshal(doc, &ism); err != nil {
		return nil, fmt.Errorf("parse ism: %w", err)
	}
	if ism.XMLName.Local != "SmoothStreamingMedia" {
		return nil, fmt.Errorf("parse ism: unexpected root element %q", ism.XMLName.Local)
	}

	m := newManifest()
	if strings.EqualFold(ism.IsLive, "TRUE") {
		m.IsLive = true
		m.warnf(opts, "live smooth streaming manifest %s is not supported", manifestURL)
		return m, nil
	}
	if ism.Protection != nil {
		m.DRM = true
		m.warnf(opts, "smooth streaming manifest %s is DRM protected", manifestURL)
		return m, nil
	}

	duration, _ := strconv.ParseInt(ism.Duration, 10, 64)
	timescale := parsePositive(ism.TimeScale, defaultISMTimescale)

	for _, stream := range ism.Streams {
		if stream.Type != "video" && stream.Type != "audio" && stream.Type != "text" {
			continue
		}
		streamTimescale := parsePositive(stream.TimeScale, timescale)
		lang := lo.CoalesceOrEmpty(stream.Language, "und")
		var end int64
		if duration > 0 {
			end = int64(float64(duration) * float64(streamTimescale) / float64(timescale))
		}
		subtitleDone := false

		for _, level := range stream.Levels {
			fourcc := level.FourCC
			if fourcc == "" && level.AudioTag == "255" {
				fourcc = "AACL"
			}
			if !lo.Contains(supportedFourCCs, fourcc) {
				m.warnf(opts, "smooth streaming fourcc %q is not supported", fourcc)
				continue
			}
			bitrate, err := strconv.ParseInt(level.Bitrate, 10, 64)
			if err != nil {
				m.warnf(opts, "smooth streaming quality level without bitrate skipped")
				continue
			}
			if stream.Type == "text" && subtitleDone {
				continue
			}
			pattern := bitrateTokenRegexp.ReplaceAllLiteralString(stream.URL, level.Bitrate)
			fragments, err := ismFragments(stream, manifestURL, pattern, streamTimescale, end)
			if err != nil {
				m.warnf(opts, "smooth streaming %s stream %s skipped: %v", stream.Type, stream.Name, err)
				break
			}

			if stream.Type == "text" {
				m.addSubtitle(lang, types.Subtitle{URL: manifestURL, Ext: "ismt", Language: lang, Name: stream.Name, Fragments: fragments})
				subtitleDone = true
				continue
			}

			tbr := bitrate / 1000
			f := types.Format{
				FormatID:     joinID(opts.FormatIDPrefix, stream.Name, strconv.FormatInt(tbr, 10)),
				URL:          manifestURL,
				ManifestURL:  manifestURL,
				Protocol:     types.ProtocolISM,
				TotalBitrate: float64(tbr),
				Preference:   opts.Preference,
				Headers:      fetch.CloneHeader(opts.Headers),
				Fragments:    fragments,
				Smooth: &types.SmoothTrack{
					StreamType:    stream.Type,
					FourCC:        fourcc,
					Duration:      duration,
					Timescale:     streamTimescale,
					CodecPrivate:  level.CodecPrivateData,
					Channels:      int(parsePositive(level.Channels, 2)),
					BitsPerSample: int(parsePositive(level.BitsPerSample, 16)),
					NALLength:     int(parsePositive(level.NALUnitLengthField, 4)),
				},
			}
			f.Width, _ = strconv.Atoi(lo.CoalesceOrEmpty(level.MaxWidth, level.Width))
			f.Height, _ = strconv.Atoi(lo.CoalesceOrEmpty(level.MaxHeight, level.Height))
			f.SampleRate, _ = strconv.Atoi(level.SamplingRate)
			if stream.Type == "video" {
				f.Ext = "ismv"
				f.VideoCodec, f.AudioCodec = fourcc, types.CodecNone
			} else {
				f.Ext = "isma"
				f.VideoCodec, f.AudioCodec = types.CodecNone, fourcc
				f.Language = language(stream.Language)
			}
			m.Formats = append(m.Formats, f)
		}
	}
	return m, nil
}

// ismFragments expands the chunk list of a stream. A chunk without d lasts
// until the next chunk's t; r counts occurrences and defaults to one.
// Repeats are clamped to end, in stream ticks after the first chunk, when
// end is positive.
func ismFragments(stream ismStreamIndex, manifestURL, pattern string, timescale, end int64) ([]types.Fragment, error) {
	var (
		out   []types.Fragment
		t     int64
		start int64
	)
	for i, c := range stream.Chunks {
		if v, ok := parseInt64(c.T); ok {
			t = v
		}
		if i == 0 {
			start = t
		}
		repeat := parsePositive(c.R, 1)
		d, ok := parseInt64(c.D)
		if !ok {
			if i+1 >= len(stream.Chunks) {
				break
			}
			next, ok := parseInt64(stream.Chunks[i+1].T)
			if !ok {
				break
			}
			d = next - t
		}
		if d <= 0 {
			return nil, fmt.Errorf("chunk %d has no duration", i)
		}
		if end > 0 {
			remaining := end - (t - start)
			if remaining <= 0 {
				break
			}
			repeat = min(repeat, (remaining+d-1)/d)
		}
		if int64(len(out))+repeat > MaxFragments {
			return nil, errTooManyFragments
		}
		for n := int64(0); n < repeat; n++ {
			path := startTimeRegexp.ReplaceAllLiteralString(pattern, strconv.FormatInt(t, 10))
			out = append(out, types.Fragment{
				URL:      resolveURL(manifestURL, path),
				Path:     path,
				Duration: float64(d) / float64(timescale),
			})
			t += d
		}
	}
	return out, nil
}

func parsePositive(raw string, fallback int64) int64 {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

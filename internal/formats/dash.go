package formats

import (
	"encoding/xml"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/famomatic/mediaresolve/internal/fetch"
	"github.com/famomatic/mediaresolve/internal/types"
)

type mpdDocument struct {
	XMLName                   xml.Name
	Type                      string       `xml:"type,attr"`
	MediaPresentationDuration string       `xml:"mediaPresentationDuration,attr"`
	BaseURLs                  []mpdBaseURL `xml:"BaseURL"`
	Periods                   []mpdPeriod  `xml:"Period"`
}

type mpdBaseURL struct {
	Value         string `xml:",chardata"`
	ContentLength string `xml:"http://youtube.com/yt/2012/10/10 contentLength,attr"`
}

type mpdPeriod struct {
	ID              string              `xml:"id,attr"`
	Duration        string              `xml:"duration,attr"`
	BaseURLs        []mpdBaseURL        `xml:"BaseURL"`
	SegmentTemplate *mpdSegmentTemplate `xml:"SegmentTemplate"`
	SegmentList     *mpdSegmentList     `xml:"SegmentList"`
	AdaptationSets  []mpdAdaptationSet  `xml:"AdaptationSet"`
}

// mpdCommon holds the attributes a Representation inherits from its
// AdaptationSet.
type mpdCommon struct {
	MimeType          string `xml:"mimeType,attr"`
	ContentType       string `xml:"contentType,attr"`
	Codecs            string `xml:"codecs,attr"`
	Lang              string `xml:"lang,attr"`
	Width             string `xml:"width,attr"`
	Height            string `xml:"height,attr"`
	FrameRate         string `xml:"frameRate,attr"`
	AudioSamplingRate string `xml:"audioSamplingRate,attr"`
}

type mpdSegments struct {
	BaseURLs          []mpdBaseURL           `xml:"BaseURL"`
	ContentProtection []mpdContentProtection `xml:"ContentProtection"`
	SegmentTemplate   *mpdSegmentTemplate    `xml:"SegmentTemplate"`
	SegmentList       *mpdSegmentList        `xml:"SegmentList"`
	SegmentBase       *mpdSegmentBase        `xml:"SegmentBase"`
}

type mpdAdaptationSet struct {
	mpdCommon
	mpdSegments
	Representations []mpdRepresentation `xml:"Representation"`
}

type mpdRepresentation struct {
	ID        string `xml:"id,attr"`
	Bandwidth string `xml:"bandwidth,attr"`
	mpdCommon
	mpdSegments
}

type mpdContentProtection struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
}

type mpdInitialization struct {
	SourceURL string `xml:"sourceURL,attr"`
	Range     string `xml:"range,attr"`
}

type mpdTimeline struct {
	S []struct {
		T string `xml:"t,attr"`
		D string `xml:"d,attr"`
		R string `xml:"r,attr"`
	} `xml:"S"`
}

type mpdMultiSegment struct {
	Timescale      string             `xml:"timescale,attr"`
	Duration       string             `xml:"duration,attr"`
	StartNumber    string             `xml:"startNumber,attr"`
	Initialization *mpdInitialization `xml:"Initialization"`
	Timeline       *mpdTimeline       `xml:"SegmentTimeline"`
}

type mpdSegmentTemplate struct {
	mpdMultiSegment
	Media              string `xml:"media,attr"`
	InitializationAttr string `xml:"initialization,attr"`
}

type mpdSegmentList struct {
	mpdMultiSegment
	SegmentURLs []struct {
		Media      string `xml:"media,attr"`
		MediaRange string `xml:"mediaRange,attr"`
	} `xml:"SegmentURL"`
}

type mpdSegmentBase struct {
	IndexRange     string             `xml:"indexRange,attr"`
	Initialization *mpdInitialization `xml:"Initialization"`
}

type timelineEntry struct {
	t, d, r int64
	hasT    bool
}

type segmentURL struct {
	media      string
	mediaRange string
}

// segmentInfo is the effective multi-segment addressing of a
// Representation after inheritance from its Period and AdaptationSet.
type segmentInfo struct {
	media           string
	initialization  string
	initRange       string
	startNumber     int64
	timescale       int64
	segmentDuration int64
	timeline        []timelineEntry
	segmentURLs     []segmentURL
}

var (
	templateNumberRegexp = regexp.MustCompile(`\$(Number|Time)(?:%0(\d+)d)?\$`)
	ignoredLanguages     = []string{"mul", "und", "zxx", "mis"}
	textCodecs           = []string{"stpp", "wvtt"}
)

// ParseDASHManifest parses an MPD document into formats. Representations
// under ContentProtection are returned with HasDRM set.
func ParseDASHManifest(doc []byte, manifestURL string, opts Options) (*Manifest, error) {
	var mpd mpdDocument
	if err := xml.Unmarshal(doc, &mpd); err != nil {
		return nil, fmt.Errorf("parse mpd: %w", err)
	}
	if mpd.XMLName.Local != "MPD" {
		return nil, fmt.Errorf("parse mpd: unexpected root element %q", mpd.XMLName.Local)
	}

	m := newManifest()
	m.IsLive = mpd.Type == "dynamic"
	mpdDuration, _ := ParseISODuration(mpd.MediaPresentationDuration)
	mpdBase := chainBaseURL(manifestURL, mpd.BaseURLs)

	for _, period := range mpd.Periods {
		periodDuration, ok := ParseISODuration(period.Duration)
		if !ok {
			periodDuration = mpdDuration
		}
		periodBase := chainBaseURL(mpdBase, period.BaseURLs)
		periodInfo := segmentInfo{startNumber: 1, timescale: 1}.
			withTemplate(period.SegmentTemplate).
			withList(period.SegmentList)

		for _, set := range period.AdaptationSets {
			setBase := chainBaseURL(periodBase, set.BaseURLs)
			setInfo := periodInfo.withTemplate(set.SegmentTemplate).withList(set.SegmentList).withBase(set.SegmentBase)

			for _, rep := range set.Representations {
				attrs := inherit(set.mpdCommon, rep.mpdCommon)
				repBase := chainBaseURL(setBase, rep.BaseURLs)
				info := setInfo.withTemplate(rep.SegmentTemplate).withList(rep.SegmentList).withBase(rep.SegmentBase)
				drm := len(set.ContentProtection) > 0 || len(rep.ContentProtection) > 0

				switch contentType(attrs) {
				case "text":
					lang := language(attrs.Lang)
					ext := mimeTypeExt(attrs.MimeType)
					if ext == "mp4" || ext == "" {
						ext = lo.Ternary(strings.HasPrefix(attrs.Codecs, "wvtt"), "vtt", "ttml")
					}
					m.addSubtitle(lang, types.Subtitle{URL: repBase, Ext: ext, Language: lang, Name: rep.ID})
				case "video", "audio":
					f, err := representationFormat(rep, attrs, repBase, info, periodDuration, manifestURL, opts)
					if err != nil {
						m.warnf(opts, "dash representation %s skipped: %v", rep.ID, err)
						continue
					}
					f.HasDRM = drm
					f.IsLive = m.IsLive
					if len(rep.BaseURLs) > 0 {
						f.Filesize, _ = strconv.ParseInt(rep.BaseURLs[0].ContentLength, 10, 64)
					}
					m.Formats = append(m.Formats, f)
				default:
					m.warnf(opts, "dash representation %s has unknown content type %q", rep.ID, attrs.MimeType)
				}
			}
		}
	}
	return m, nil
}

func representationFormat(rep mpdRepresentation, attrs mpdCommon, baseURL string, info segmentInfo, periodDuration float64, manifestURL string, opts Options) (types.Format, error) {
	f := types.Format{
		FormatID:    joinID(opts.FormatIDPrefix, rep.ID),
		URL:         manifestURL,
		ManifestURL: manifestURL,
		Protocol:    types.ProtocolDASH,
		Ext:         mimeTypeExt(attrs.MimeType),
		Language:    language(attrs.Lang),
		Preference:  opts.Preference,
		Headers:     fetch.CloneHeader(opts.Headers),
	}
	f.Width, _ = strconv.Atoi(attrs.Width)
	f.Height, _ = strconv.Atoi(attrs.Height)
	f.FPS = parseFrameRate(attrs.FrameRate)
	f.SampleRate, _ = strconv.Atoi(attrs.AudioSamplingRate)
	bandwidth, _ := strconv.ParseFloat(rep.Bandwidth, 64)
	f.TotalBitrate = bandwidth / 1000

	if codecs, ok := ParseCodecs(attrs.Codecs).Get(); ok {
		f.VideoCodec, f.AudioCodec = codecs.Video, codecs.Audio
	} else if contentType(attrs) == "audio" {
		f.VideoCodec = types.CodecNone
	}
	// Adaptive representations carry a single track each.
	if contentType(attrs) == "video" && f.AudioCodec == "" {
		f.AudioCodec = types.CodecNone
	}

	fragments, err := info.fragments(rep, baseURL, periodDuration)
	if err != nil {
		return types.Format{}, err
	}
	if len(fragments) == 0 {
		f.URL = baseURL
		return f, nil
	}
	f.FragmentBaseURL = baseURL
	f.Fragments = fragments
	return f, nil
}

func (s segmentInfo) withMulti(ms mpdMultiSegment) segmentInfo {
	if v, err := strconv.ParseInt(ms.Timescale, 10, 64); err == nil && v > 0 {
		s.timescale = v
	}
	if v, err := strconv.ParseInt(ms.Duration, 10, 64); err == nil && v > 0 {
		s.segmentDuration = v
	}
	if v, err := strconv.ParseInt(ms.StartNumber, 10, 64); err == nil {
		s.startNumber = v
	}
	if ms.Initialization != nil {
		s.initialization = ms.Initialization.SourceURL
		s.initRange = ms.Initialization.Range
	}
	if ms.Timeline != nil {
		s.timeline = nil
		for _, e := range ms.Timeline.S {
			var te timelineEntry
			te.t, te.hasT = parseInt64(e.T)
			te.d, _ = parseInt64(e.D)
			te.r, _ = parseInt64(e.R)
			s.timeline = append(s.timeline, te)
		}
	}
	return s
}

func (s segmentInfo) withTemplate(t *mpdSegmentTemplate) segmentInfo {
	if t == nil {
		return s
	}
	s = s.withMulti(t.mpdMultiSegment)
	if t.Media != "" {
		s.media = t.Media
		s.segmentURLs = nil
	}
	if t.InitializationAttr != "" {
		s.initialization = t.InitializationAttr
	}
	return s
}

func (s segmentInfo) withList(l *mpdSegmentList) segmentInfo {
	if l == nil {
		return s
	}
	s = s.withMulti(l.mpdMultiSegment)
	if len(l.SegmentURLs) > 0 {
		s.media = ""
		s.segmentURLs = make([]segmentURL, 0, len(l.SegmentURLs))
		for _, u := range l.SegmentURLs {
			s.segmentURLs = append(s.segmentURLs, segmentURL{media: u.Media, mediaRange: u.MediaRange})
		}
	}
	return s
}

func (s segmentInfo) withBase(b *mpdSegmentBase) segmentInfo {
	if b == nil || b.Initialization == nil {
		return s
	}
	s.initialization = b.Initialization.SourceURL
	s.initRange = b.Initialization.Range
	return s
}

// fragments expands the addressing into fragments. A single-file
// representation yields none.
func (s segmentInfo) fragments(rep mpdRepresentation, baseURL string, periodDuration float64) ([]types.Fragment, error) {
	var out []types.Fragment
	addInit := func() error {
		if s.initialization == "" && s.initRange == "" {
			return nil
		}
		initFrag := types.Fragment{Path: expandTemplate(s.initialization, rep, 0, 0)}
		initFrag.URL = resolveURL(baseURL, initFrag.Path)
		if s.initRange != "" {
			r, err := parseMediaRange(s.initRange)
			if err != nil {
				return err
			}
			initFrag.Range = r
		}
		out = append(out, initFrag)
		return nil
	}
	timescale := float64(s.timescale)

	switch {
	case s.media != "":
		if err := addInit(); err != nil {
			return nil, err
		}
		add := func(number, t, d int64) {
			path := expandTemplate(s.media, rep, number, t)
			out = append(out, types.Fragment{URL: resolveURL(baseURL, path), Path: path, Duration: float64(d) / timescale})
		}
		if len(s.timeline) > 0 {
			var t, start int64
			// limit is the period length in ticks, counted from the first entry.
			limit := int64(math.Ceil(periodDuration * timescale))
			number := s.startNumber
			for i, e := range s.timeline {
				if e.hasT {
					t = e.t
				}
				if i == 0 {
					start = t
				}
				if e.d <= 0 {
					return nil, fmt.Errorf("segment timeline entry %d has no duration", i)
				}
				repeat := e.r
				if repeat < 0 {
					end := int64(periodDuration * timescale)
					if i+1 < len(s.timeline) && s.timeline[i+1].hasT {
						end = s.timeline[i+1].t
					}
					repeat = int64(math.Ceil(float64(end-t)/float64(e.d))) - 1
				}
				if limit > 0 {
					remaining := limit - (t - start)
					if remaining <= 0 {
						break
					}
					repeat = min(repeat, (remaining+e.d-1)/e.d-1)
				}
				if int64(len(out))+repeat+1 > MaxFragments {
					return nil, errTooManyFragments
				}
				for n := int64(0); n <= repeat; n++ {
					add(number, t, e.d)
					t += e.d
					number++
				}
			}
			return out, nil
		}
		if s.segmentDuration <= 0 {
			return nil, fmt.Errorf("segment template %q without duration or timeline", s.media)
		}
		if periodDuration <= 0 {
			return nil, fmt.Errorf("segment template %q needs a period duration", s.media)
		}
		segment := float64(s.segmentDuration) / timescale
		total := math.Ceil(periodDuration / segment)
		if total > MaxFragments {
			return nil, errTooManyFragments
		}
		for i := int64(0); i < int64(total); i++ {
			add(s.startNumber+i, i*s.segmentDuration, s.segmentDuration)
		}
		return out, nil

	case len(s.segmentURLs) > 0:
		if err := addInit(); err != nil {
			return nil, err
		}
		for i, u := range s.segmentURLs {
			frag := types.Fragment{Path: u.media, URL: baseURL}
			if u.media != "" {
				frag.URL = resolveURL(baseURL, u.media)
			}
			if u.mediaRange != "" {
				r, err := parseMediaRange(u.mediaRange)
				if err != nil {
					return nil, err
				}
				frag.Range = r
			}
			switch {
			case i < len(s.timeline):
				frag.Duration = float64(s.timeline[i].d) / timescale
			case s.segmentDuration > 0:
				frag.Duration = float64(s.segmentDuration) / timescale
			}
			out = append(out, frag)
		}
		return out, nil
	}
	return nil, nil
}

// expandTemplate substitutes the DASH template identifiers in tmpl.
func expandTemplate(tmpl string, rep mpdRepresentation, number, t int64) string {
	out := strings.NewReplacer("$RepresentationID$", rep.ID, "$Bandwidth$", rep.Bandwidth).Replace(tmpl)
	out = templateNumberRegexp.ReplaceAllStringFunc(out, func(token string) string {
		m := templateNumberRegexp.FindStringSubmatch(token)
		v := number
		if m[1] == "Time" {
			v = t
		}
		if m[2] != "" {
			width, _ := strconv.Atoi(m[2])
			return fmt.Sprintf("%0*d", width, v)
		}
		return strconv.FormatInt(v, 10)
	})
	return strings.ReplaceAll(out, "$$", "$")
}

func chainBaseURL(parent string, bases []mpdBaseURL) string {
	if len(bases) == 0 {
		return parent
	}
	v := strings.TrimSpace(bases[0].Value)
	if v == "" {
		return parent
	}
	return resolveURL(parent, v)
}

func inherit(parent, child mpdCommon) mpdCommon {
	return mpdCommon{
		MimeType:          lo.CoalesceOrEmpty(child.MimeType, parent.MimeType),
		ContentType:       lo.CoalesceOrEmpty(child.ContentType, parent.ContentType),
		Codecs:            lo.CoalesceOrEmpty(child.Codecs, parent.Codecs),
		Lang:              lo.CoalesceOrEmpty(child.Lang, parent.Lang),
		Width:             lo.CoalesceOrEmpty(child.Width, parent.Width),
		Height:            lo.CoalesceOrEmpty(child.Height, parent.Height),
		FrameRate:         lo.CoalesceOrEmpty(child.FrameRate, parent.FrameRate),
		AudioSamplingRate: lo.CoalesceOrEmpty(child.AudioSamplingRate, parent.AudioSamplingRate),
	}
}

func contentType(attrs mpdCommon) string {
	if attrs.ContentType != "" {
		return attrs.ContentType
	}
	if lo.Contains(textCodecs, strings.SplitN(attrs.Codecs, ".", 2)[0]) {
		return "text"
	}
	if attrs.MimeType == "application/ttml+xml" {
		return "text"
	}
	kind, _, _ := strings.Cut(attrs.MimeType, "/")
	return kind
}

func language(lang string) string {
	if lo.Contains(ignoredLanguages, lang) {
		return ""
	}
	return lang
}

func parseFrameRate(raw string) float64 {
	num, den, ok := strings.Cut(raw, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// parseMediaRange parses an inclusive "start-end" range.
func parseMediaRange(raw string) (*types.ByteRange, error) {
	startRaw, endRaw, ok := strings.Cut(raw, "-")
	start, err1 := strconv.ParseInt(startRaw, 10, 64)
	end, err2 := strconv.ParseInt(endRaw, 10, 64)
	if !ok || err1 != nil || err2 != nil || end < start {
		return nil, fmt.Errorf("invalid media range %q", raw)
	}
	return &types.ByteRange{Start: start, End: end}, nil
}

func parseInt64(raw string) (int64, bool) {
	v, err := strconv.ParseInt(raw, 10, 64)
	return v, err == nil
}

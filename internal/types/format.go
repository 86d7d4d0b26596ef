package types

import (
	"fmt"
	"net/http"
)

// Protocol tags how a Format is transferred.
type Protocol string

const (
	ProtocolHTTPS Protocol = "https"
	ProtocolHLS   Protocol = "hls"
	ProtocolDASH  Protocol = "dash"
	ProtocolISM   Protocol = "ism"
	ProtocolP2P   Protocol = "p2p"
	ProtocolOther Protocol = "other"
)

// IsManifest reports whether the protocol is manifest-derived.
func (p Protocol) IsManifest() bool {
	return p == ProtocolHLS || p == ProtocolDASH || p == ProtocolISM
}

// CodecNone marks a track that is known to be absent.
// An empty codec string means unknown.
const CodecNone = "none"

// Format is the normalized stream descriptor.
type Format struct {
	FormatID    string
	URL         string
	ManifestURL string
	Protocol    Protocol

	Ext          string
	VideoCodec   string
	AudioCodec   string
	Width        int
	Height       int
	FPS          float64
	VideoBitrate float64 // kbps
	AudioBitrate float64 // kbps
	TotalBitrate float64 // kbps
	SampleRate   int
	Filesize     int64
	// FilesizeApprox is set when Filesize is an estimate.
	FilesizeApprox bool
	QualityLabel   string
	Language       string

	Preference       int
	Quality          float64
	SourcePreference int

	Headers           http.Header
	Fragments         []Fragment
	FragmentBaseURL   string
	FragmentsDeferred bool
	Renditions        []Rendition
	Challenge         *Challenge
	Smooth            *SmoothTrack

	IsLive bool
	HasDRM bool
}

// Fragment is one addressable piece of a segmented stream.
type Fragment struct {
	URL      string
	Path     string
	Range    *ByteRange
	Duration float64
}

// ByteRange is an inclusive byte range.
type ByteRange struct {
	Start int64
	End   int64
}

// Header renders the range as an HTTP Range header value.
func (r ByteRange) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// Rendition is an alternate track declared alongside a variant.
// It is associated with a Format, never merged into it.
type Rendition struct {
	Type     string // AUDIO, SUBTITLES, CLOSED-CAPTIONS, VIDEO
	GroupID  string
	Name     string
	Language string
	URL      string
	Default  bool
}

// Subtitle is a subtitle track found in a manifest.
type Subtitle struct {
	URL      string
	Ext      string
	Language string
	Name     string
	// Fragments is set for subtitles delivered in pieces.
	Fragments []Fragment
}

// Challenge marks a Format whose access token must be decrypted first.
type Challenge struct {
	Token     string
	Param     string
	ScriptURL string
}

// SmoothTrack carries Smooth Streaming addressing parameters.
type SmoothTrack struct {
	StreamType    string
	FourCC        string
	Duration      int64
	Timescale     int64
	CodecPrivate  string
	Channels      int
	BitsPerSample int
	NALLength     int
}

// HasVideo reports whether the format may carry video.
func (f Format) HasVideo() bool {
	return f.VideoCodec != CodecNone
}

// HasAudio reports whether the format may carry audio.
func (f Format) HasAudio() bool {
	return f.AudioCodec != CodecNone
}

// IsCombined reports whether the format is known to carry both tracks.
func (f Format) IsCombined() bool {
	return f.VideoCodec != "" && f.VideoCodec != CodecNone &&
		f.AudioCodec != "" && f.AudioCodec != CodecNone
}

// Bitrate returns the best known bitrate in kbps.
func (f Format) Bitrate() float64 {
	if f.TotalBitrate > 0 {
		return f.TotalBitrate
	}
	return f.VideoBitrate + f.AudioBitrate
}

// IsPlayable reports whether f has a URL and at least one track.
func IsPlayable(f Format) bool {
	if f.URL == "" {
		return false
	}
	return f.VideoCodec != CodecNone || f.AudioCodec != CodecNone
}

// Validate checks the descriptor invariants.
func Validate(f Format) error {
	if f.VideoCodec == CodecNone && f.AudioCodec == CodecNone {
		return fmt.Errorf("format %q has neither video nor audio", f.FormatID)
	}
	if f.Width < 0 || f.Height < 0 {
		return fmt.Errorf("format %q has invalid dimensions %dx%d", f.FormatID, f.Width, f.Height)
	}
	return nil
}

// Clone returns a copy of f that shares no slices or maps with it.
func (f Format) Clone() Format {
	out := f
	if f.Headers != nil {
		out.Headers = f.Headers.Clone()
	}
	if f.Fragments != nil {
		out.Fragments = append([]Fragment(nil), f.Fragments...)
	}
	if f.Renditions != nil {
		out.Renditions = append([]Rendition(nil), f.Renditions...)
	}
	if f.Challenge != nil {
		c := *f.Challenge
		out.Challenge = &c
	}
	if f.Smooth != nil {
		s := *f.Smooth
		out.Smooth = &s
	}
	return out
}

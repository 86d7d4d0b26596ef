package formats

import (
	"testing"

	"github.com/famomatic/mediaresolve/internal/types"
)

func TestParseDASHManifest_BasicRepresentations(t *testing.T) {
	raw := `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static">
  <Period>
    <AdaptationSet mimeType="audio/mp4" codecs="mp4a.40.2">
      <Representation id="140" bandwidth="128000" audioSamplingRate="44100">
        <BaseURL>https://cdn.example.test/audio/140.m4a</BaseURL>
      </Representation>
    </AdaptationSet>
    <AdaptationSet mimeType="video/mp4" codecs="avc1.64001f">
      <Representation id="137" bandwidth="2500000" width="1920" height="1080" frameRate="30000/1001">
        <BaseURL>https://cdn.example.test/video/137.mp4</BaseURL>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

	out, err := ParseDASHManifest([]byte(raw), "https://example.test/manifest.mpd", Options{FormatIDPrefix: "dash"})
	if err != nil {
		t.Fatalf("ParseDASHManifest() error = %v", err)
	}
	if len(out.Formats) != 2 {
		t.Fatalf("len(formats)=%d, want 2", len(out.Formats))
	}
	audio, video := out.Formats[0], out.Formats[1]
	if audio.Protocol != types.ProtocolDASH || video.Protocol != types.ProtocolDASH {
		t.Fatalf("expected dash protocol for all formats: %+v", out.Formats)
	}
	if audio.FormatID != "dash-140" || audio.Ext != "m4a" || audio.VideoCodec != types.CodecNone || audio.AudioCodec != "mp4a.40.2" {
		t.Fatalf("audio representation mismatch: %+v", audio)
	}
	if audio.URL != "https://cdn.example.test/audio/140.m4a" || audio.SampleRate != 44100 || audio.TotalBitrate != 128 {
		t.Fatalf("audio addressing mismatch: %+v", audio)
	}
	if video.Width != 1920 || video.Height != 1080 || video.AudioCodec != types.CodecNone {
		t.Fatalf("video representation mismatch: %+v", video)
	}
	if video.FPS < 29.96 || video.FPS > 29.98 {
		t.Fatalf("video fps = %v, want ~29.97", video.FPS)
	}
}

func TestParseDASHManifest_SegmentTemplateNumber(t *testing.T) {
	raw := `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="PT7.5S">
  <BaseURL>https://cdn.example.test/dash/</BaseURL>
  <Period>
    <AdaptationSet mimeType="video/mp4" codecs="avc1.4d401f">
      <SegmentTemplate timescale="1000" duration="4000" startNumber="1"
        initialization="$RepresentationID$/init.mp4" media="$RepresentationID$/seg-$Number%03d$.m4s"/>
      <Representation id="v1" bandwidth="1000000" width="1280" height="720"/>
    </AdaptationSet>
  </Period>
</MPD>`

	out, err := ParseDASHManifest([]byte(raw), "https://example.test/manifest.mpd", Options{})
	if err != nil {
		t.Fatalf("ParseDASHManifest() error = %v", err)
	}
	if len(out.Formats) != 1 {
		t.Fatalf("len(formats)=%d, want 1", len(out.Formats))
	}
	f := out.Formats[0]
	want := []string{
		"https://cdn.example.test/dash/v1/init.mp4",
		"https://cdn.example.test/dash/v1/seg-001.m4s",
		"https://cdn.example.test/dash/v1/seg-002.m4s",
	}
	if len(f.Fragments) != len(want) {
		t.Fatalf("len(fragments)=%d, want %d: %+v", len(f.Fragments), len(want), f.Fragments)
	}
	for i, w := range want {
		if f.Fragments[i].URL != w {
			t.Fatalf("fragment[%d] = %q, want %q", i, f.Fragments[i].URL, w)
		}
	}
	if f.Fragments[1].Duration != 4 {
		t.Fatalf("fragment duration = %v, want 4", f.Fragments[1].Duration)
	}
	if f.URL != "https://example.test/manifest.mpd" || f.FragmentBaseURL != "https://cdn.example.test/dash/" {
		t.Fatalf("fragmented format addressing mismatch: url=%q base=%q", f.URL, f.FragmentBaseURL)
	}
	if f.FormatID != "v1" {
		t.Fatalf("FormatID = %q, want %q", f.FormatID, "v1")
	}
}

func TestParseDASHManifest_SegmentTimeline(t *testing.T) {
	raw := `<MPD type="static">
  <Period duration="PT7S">
    <AdaptationSet mimeType="audio/mp4" codecs="mp4a.40.2" lang="en">
      <Representation id="a1" bandwidth="96000">
        <BaseURL>https://cdn.example.test/a/</BaseURL>
        <SegmentTemplate timescale="90000" media="$Time$.m4s" initialization="init.mp4">
          <SegmentTimeline>
            <S t="0" d="180000" r="2"/>
            <S d="90000"/>
          </SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

	out, err := ParseDASHManifest([]byte(raw), "https://example.test/manifest.mpd", Options{})
	if err != nil {
		t.Fatalf("ParseDASHManifest() error = %v", err)
	}
	f := out.Formats[0]
	wantPaths := []string{"init.mp4", "0.m4s", "180000.m4s", "360000.m4s", "540000.m4s"}
	wantDur := []float64{0, 2, 2, 2, 1}
	if len(f.Fragments) != len(wantPaths) {
		t.Fatalf("len(fragments)=%d, want %d", len(f.Fragments), len(wantPaths))
	}
	for i := range wantPaths {
		if f.Fragments[i].Path != wantPaths[i] || f.Fragments[i].Duration != wantDur[i] {
			t.Fatalf("fragment[%d] = %+v, want path %q duration %v", i, f.Fragments[i], wantPaths[i], wantDur[i])
		}
	}
	if f.Fragments[1].URL != "https://cdn.example.test/a/0.m4s" {
		t.Fatalf("fragment url = %q", f.Fragments[1].URL)
	}
	if f.Language != "en" {
		t.Fatalf("Language = %q, want en", f.Language)
	}
}

func TestParseDASHManifest_TimelineClampedToPeriod(t *testing.T) {
	raw := `<MPD type="static" mediaPresentationDuration="PT10S">
  <Period>
    <AdaptationSet mimeType="video/mp4" codecs="avc1.4d401f">
      <Representation id="v1" bandwidth="500000" width="640" height="360">
        <SegmentTemplate media="$Number$.m4s">
          <SegmentTimeline>
            <S t="0" d="1" r="2000000"/>
          </SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

	out, err := ParseDASHManifest([]byte(raw), "https://example.test/manifest.mpd", Options{})
	if err != nil {
		t.Fatalf("ParseDASHManifest() error = %v", err)
	}
	if len(out.Formats) != 1 {
		t.Fatalf("len(formats)=%d, want 1", len(out.Formats))
	}
	frags := out.Formats[0].Fragments
	if len(frags) != 10 {
		t.Fatalf("len(fragments)=%d, want 10", len(frags))
	}
	if frags[9].Path != "10.m4s" {
		t.Fatalf("last fragment = %q, want 10.m4s", frags[9].Path)
	}
}

func TestParseDASHManifest_TooManyFragmentsSkipsRepresentation(t *testing.T) {
	raw := `<MPD type="dynamic">
  <Period>
    <AdaptationSet mimeType="video/mp4" codecs="avc1.4d401f">
      <Representation id="huge" bandwidth="500000">
        <SegmentTemplate media="$Number$.m4s">
          <SegmentTimeline>
            <S t="0" d="1" r="2000000"/>
          </SegmentTimeline>
        </SegmentTemplate>
      </Representation>
      <Representation id="small" bandwidth="300000">
        <SegmentTemplate media="s-$Number$.m4s">
          <SegmentTimeline>
            <S t="0" d="4" r="1"/>
          </SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

	out, err := ParseDASHManifest([]byte(raw), "https://example.test/manifest.mpd", Options{})
	if err != nil {
		t.Fatalf("ParseDASHManifest() error = %v", err)
	}
	if len(out.Formats) != 1 || out.Formats[0].FormatID != "small" || len(out.Formats[0].Fragments) != 2 {
		t.Fatalf("formats = %+v, want only small with 2 fragments", out.Formats)
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one skipped representation", out.Warnings)
	}
}

func TestParseDASHManifest_ProtectionTextAndLive(t *testing.T) {
	raw := `<MPD type="dynamic">
  <Period>
    <AdaptationSet mimeType="video/mp4" codecs="avc1.4d401f">
      <ContentProtection schemeIdUri="urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed"/>
      <Representation id="v1" bandwidth="1000000">
        <BaseURL>https://cdn.example.test/v1.mp4</BaseURL>
      </Representation>
    </AdaptationSet>
    <AdaptationSet mimeType="text/vtt" lang="en">
      <Representation id="sub-en" bandwidth="256">
        <BaseURL>subs/en.vtt</BaseURL>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

	out, err := ParseDASHManifest([]byte(raw), "https://example.test/live/manifest.mpd", Options{})
	if err != nil {
		t.Fatalf("ParseDASHManifest() error = %v", err)
	}
	if !out.IsLive {
		t.Fatalf("IsLive = false, want true for dynamic MPD")
	}
	if len(out.Formats) != 1 || !out.Formats[0].HasDRM || !out.Formats[0].IsLive {
		t.Fatalf("expected one live DRM format, got %+v", out.Formats)
	}
	subs := out.Subtitles["en"]
	if len(subs) != 1 || subs[0].URL != "https://example.test/live/subs/en.vtt" || subs[0].Ext != "vtt" {
		t.Fatalf("subtitles = %+v", out.Subtitles)
	}
}

func TestParseDASHManifest_Invalid(t *testing.T) {
	if _, err := ParseDASHManifest([]byte("not xml"), "https://example.test/m.mpd", Options{}); err == nil {
		t.Fatalf("ParseDASHManifest() expected error for garbage input")
	}
	if _, err := ParseDASHManifest([]byte("<Other/>"), "https://example.test/m.mpd", Options{}); err == nil {
		t.Fatalf("ParseDASHManifest() expected error for wrong root")
	}
}

func TestParseHLSManifest_MasterPlaylist(t *testing.T) {
	raw := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,AVERAGE-BANDWIDTH=700000,RESOLUTION=1280x720,FRAME-RATE=29.97,CODECS="avc1.4d401f,mp4a.40.2",AUDIO="aud1"
v/720/prog.m3u8
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud1",NAME="English",LANGUAGE="en",DEFAULT=YES,AUTOSELECT=YES,URI="a/en/audio.m3u8"
`
	out, err := ParseHLSManifest(raw, "https://example.test/master.m3u8", Options{FormatIDPrefix: "hls"})
	if err != nil {
		t.Fatalf("ParseHLSManifest() error = %v", err)
	}
	if len(out.Formats) != 2 {
		t.Fatalf("len(formats)=%d, want 2", len(out.Formats))
	}
	variant, audio := out.Formats[0], out.Formats[1]
	if variant.Protocol != types.ProtocolHLS || audio.Protocol != types.ProtocolHLS {
		t.Fatalf("expected hls protocol: %+v", out.Formats)
	}
	if variant.FormatID != "hls-700" || variant.TotalBitrate != 700 {
		t.Fatalf("variant id/bitrate mismatch: %+v", variant)
	}
	if variant.Width != 1280 || variant.Height != 720 || variant.FPS != 29.97 {
		t.Fatalf("variant dimensions mismatch: %+v", variant)
	}
	if variant.URL != "https://example.test/v/720/prog.m3u8" || !variant.FragmentsDeferred {
		t.Fatalf("variant addressing mismatch: %+v", variant)
	}
	if variant.VideoCodec != "avc1.4d401f" || variant.AudioCodec != types.CodecNone {
		t.Fatalf("variant with separate audio rendition should be video only: %+v", variant)
	}
	if len(variant.Renditions) != 1 || variant.Renditions[0].URL != "https://example.test/a/en/audio.m3u8" {
		t.Fatalf("variant renditions = %+v", variant.Renditions)
	}
	if audio.FormatID != "hls-aud1-English" || audio.VideoCodec != types.CodecNone || audio.Language != "en" {
		t.Fatalf("audio rendition mismatch: %+v", audio)
	}
}

func TestParseHLSManifest_VariantsInSourceOrder(t *testing.T) {
	raw := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=600000,RESOLUTION=640x360
low.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=960x540
mid.m3u8
#EXT-X-I-FRAME-STREAM-INF:BANDWIDTH=90000,URI="iframe.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=3000000,RESOLUTION=1920x1080
high.m3u8
`
	out, err := ParseHLSManifest(raw, "https://example.test/hls/master.m3u8", Options{FormatIDPrefix: "hls"})
	if err != nil {
		t.Fatalf("ParseHLSManifest() error = %v", err)
	}
	wantIDs := []string{"hls-600", "hls-1200", "hls-3000"}
	wantRates := []float64{600, 1200, 3000}
	if len(out.Formats) != len(wantIDs) {
		t.Fatalf("len(formats)=%d, want %d", len(out.Formats), len(wantIDs))
	}
	for i, f := range out.Formats {
		if f.FormatID != wantIDs[i] || f.TotalBitrate != wantRates[i] {
			t.Fatalf("format[%d] = %s/%v, want %s/%v", i, f.FormatID, f.TotalBitrate, wantIDs[i], wantRates[i])
		}
		if f.VideoCodec != "" || f.AudioCodec != "" {
			t.Fatalf("format[%d] codecs should be unknown without CODECS: %+v", i, f)
		}
	}
}

func TestParseHLSManifest_SubtitlesAndOnTheFly(t *testing.T) {
	raw := `#EXTM3U
#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",NAME="Deutsch",LANGUAGE="de",URI="subs/de.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=500000,SUBTITLES="subs"
a.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=900000
chunk_$Number$.m3u8
`
	out, err := ParseHLSManifest(raw, "https://example.test/master.m3u8", Options{ContextID: "vid1"})
	if err != nil {
		t.Fatalf("ParseHLSManifest() error = %v", err)
	}
	if len(out.Formats) != 1 || out.Formats[0].FormatID != "500" {
		t.Fatalf("formats = %+v", out.Formats)
	}
	if len(out.Formats[0].Renditions) != 1 || out.Formats[0].Renditions[0].Type != "SUBTITLES" {
		t.Fatalf("subtitle rendition not associated: %+v", out.Formats[0].Renditions)
	}
	if subs := out.Subtitles["de"]; len(subs) != 1 || subs[0].URL != "https://example.test/subs/de.m3u8" {
		t.Fatalf("subtitles = %+v", out.Subtitles)
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one on-the-fly warning", out.Warnings)
	}
}

func TestParseHLSManifest_DRM(t *testing.T) {
	for _, raw := range []string{
		"#EXTM3U\n#EXT-X-FAXS-CM:MIIa\n#EXT-X-STREAM-INF:BANDWIDTH=1\na.m3u8\n",
		"#EXTM3U\n#EXT-X-SESSION-KEY:METHOD=SAMPLE-AES,URI=\"skd://key\"\n#EXT-X-STREAM-INF:BANDWIDTH=1\na.m3u8\n",
	} {
		out, err := ParseHLSManifest(raw, "https://example.test/master.m3u8", Options{})
		if err != nil {
			t.Fatalf("ParseHLSManifest() error = %v", err)
		}
		if !out.DRM || len(out.Formats) != 0 {
			t.Fatalf("expected DRM manifest without formats, got %+v", out)
		}
	}
}

func TestParseHLSManifest_MediaPlaylistIsDeferred(t *testing.T) {
	raw := "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\nseg0.ts\n"
	out, err := ParseHLSManifest(raw, "https://example.test/live.m3u8", Options{FormatIDPrefix: "hls"})
	if err != nil {
		t.Fatalf("ParseHLSManifest() error = %v", err)
	}
	if len(out.Formats) != 1 {
		t.Fatalf("len(formats)=%d, want 1", len(out.Formats))
	}
	f := out.Formats[0]
	if f.FormatID != "hls" || f.URL != "https://example.test/live.m3u8" || !f.FragmentsDeferred || !f.IsLive {
		t.Fatalf("media playlist format mismatch: %+v", f)
	}
}

func TestParseHLSManifest_NotPlaylist(t *testing.T) {
	if _, err := ParseHLSManifest("<html>", "https://example.test/x", Options{}); err == nil {
		t.Fatalf("ParseHLSManifest() expected error")
	}
}

func TestParseISMManifest(t *testing.T) {
	raw := `<?xml version="1.0" encoding="utf-8"?>
<SmoothStreamingMedia MajorVersion="2" MinorVersion="0" Duration="60000000" TimeScale="10000000">
  <StreamIndex Type="video" Name="video" Url="QualityLevels({bitrate})/Fragments(video={start time})">
    <QualityLevel Index="0" Bitrate="1500000" FourCC="AVC1" MaxWidth="1280" MaxHeight="720" CodecPrivateData="0000000167"/>
    <QualityLevel Index="1" Bitrate="500000" FourCC="WVC1" MaxWidth="640" MaxHeight="360"/>
    <c t="0" d="20000000" r="2"/>
    <c d="20000000"/>
  </StreamIndex>
  <StreamIndex Type="audio" Name="audio" Language="eng" Url="QualityLevels({Bitrate})/Fragments(audio={start_time})">
    <QualityLevel Index="0" Bitrate="128000" AudioTag="255" SamplingRate="48000" Channels="2"/>
    <c t="0" d="30000000"/>
    <c d="30000000"/>
  </StreamIndex>
</SmoothStreamingMedia>`

	out, err := ParseISMManifest([]byte(raw), "https://example.test/vod/movie.ism/Manifest", Options{FormatIDPrefix: "mss"})
	if err != nil {
		t.Fatalf("ParseISMManifest() error = %v", err)
	}
	if len(out.Formats) != 2 {
		t.Fatalf("len(formats)=%d, want 2", len(out.Formats))
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one unsupported fourcc warning", out.Warnings)
	}

	video := out.Formats[0]
	if video.FormatID != "mss-video-1500" || video.VideoCodec != "AVC1" || video.AudioCodec != types.CodecNone || video.Ext != "ismv" {
		t.Fatalf("video mismatch: %+v", video)
	}
	if video.Width != 1280 || video.Height != 720 || video.Smooth == nil || video.Smooth.NALLength != 4 {
		t.Fatalf("video track mismatch: %+v", video)
	}
	if len(video.Fragments) != 3 {
		t.Fatalf("len(video fragments)=%d, want 3", len(video.Fragments))
	}
	if got := video.Fragments[2].URL; got != "https://example.test/vod/movie.ism/QualityLevels(1500000)/Fragments(video=40000000)" {
		t.Fatalf("video fragment url = %q", got)
	}
	if video.Fragments[0].Duration != 2 {
		t.Fatalf("video fragment duration = %v, want 2", video.Fragments[0].Duration)
	}

	audio := out.Formats[1]
	if audio.FormatID != "mss-audio-128" || audio.AudioCodec != "AACL" || audio.SampleRate != 48000 || audio.Language != "eng" {
		t.Fatalf("audio mismatch: %+v", audio)
	}
	if len(audio.Fragments) != 2 || audio.Fragments[1].Path != "QualityLevels(128000)/Fragments(audio=30000000)" {
		t.Fatalf("audio fragments = %+v", audio.Fragments)
	}
}

func TestParseISMManifest_Protected(t *testing.T) {
	raw := `<SmoothStreamingMedia Duration="1"><Protection><ProtectionHeader SystemID="x">AA==</ProtectionHeader></Protection>
<StreamIndex Type="video" Url="q({bitrate})"><QualityLevel Bitrate="1" FourCC="AVC1"/></StreamIndex></SmoothStreamingMedia>`
	out, err := ParseISMManifest([]byte(raw), "https://example.test/m.ism/Manifest", Options{})
	if err != nil {
		t.Fatalf("ParseISMManifest() error = %v", err)
	}
	if !out.DRM || len(out.Formats) != 0 {
		t.Fatalf("expected DRM manifest without formats, got %+v", out)
	}
}

func TestParseISMManifest_ClampsRepeatsAndGroupsText(t *testing.T) {
	raw := `<SmoothStreamingMedia MajorVersion="2" MinorVersion="0" Duration="40000000" TimeScale="10000000">
  <StreamIndex Type="video" Name="video" Url="QualityLevels({bitrate})/Fragments(video={start time})">
    <QualityLevel Index="0" Bitrate="1500000" FourCC="AVC1" MaxWidth="1280" MaxHeight="720"/>
    <c t="0" d="20000000" r="1000000"/>
  </StreamIndex>
  <StreamIndex Type="text" Name="textstream_eng" Language="eng" Url="QualityLevels({bitrate})/Fragments(textstream_eng={start time})">
    <QualityLevel Index="0" Bitrate="1000" FourCC="TTML"/>
    <QualityLevel Index="1" Bitrate="2000" FourCC="TTML"/>
    <c t="0" d="20000000"/>
    <c d="20000000"/>
  </StreamIndex>
</SmoothStreamingMedia>`

	out, err := ParseISMManifest([]byte(raw), "https://example.test/vod/movie.ism/Manifest", Options{FormatIDPrefix: "mss"})
	if err != nil {
		t.Fatalf("ParseISMManifest() error = %v", err)
	}
	if len(out.Formats) != 1 || len(out.Formats[0].Fragments) != 2 {
		t.Fatalf("formats = %+v, want one video format with 2 fragments", out.Formats)
	}
	subs := out.Subtitles["eng"]
	if len(subs) != 1 {
		t.Fatalf("subtitles = %+v, want one per text stream", out.Subtitles)
	}
	if len(subs[0].Fragments) != 2 {
		t.Fatalf("subtitle fragments = %+v, want 2", subs[0].Fragments)
	}
	want := "https://example.test/vod/movie.ism/QualityLevels(1000)/Fragments(textstream_eng=20000000)"
	if got := subs[0].Fragments[1].URL; got != want {
		t.Fatalf("subtitle fragment url = %q, want %q", got, want)
	}
}

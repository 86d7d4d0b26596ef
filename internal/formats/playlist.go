package formats

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/famomatic/mediaresolve/internal/fetch"
	"github.com/famomatic/mediaresolve/internal/types"
)

// MediaPlaylist is a parsed HLS media playlist.
type MediaPlaylist struct {
	TargetDuration float64
	MediaSequence  int
	PlaylistType   string
	EndList        bool
	Segments       []Segment
}

// IsLive reports whether the playlist can still grow.
func (p *MediaPlaylist) IsLive() bool {
	return !p.EndList && p.PlaylistType != "VOD"
}

// Segment is one media segment of a playlist.
type Segment struct {
	URL      string
	Duration float64
	Seq      int
	Range    *types.ByteRange
	Key      *Key
	Map      *Map
}

// Key is the EXT-X-KEY in effect for a segment.
type Key struct {
	Method string
	URI    string
	IV     []byte
}

// Map is the EXT-X-MAP initialization section in effect for a segment.
type Map struct {
	URI   string
	Range *types.ByteRange
}

// Fragments converts the playlist into fragments. Each distinct
// initialization section is emitted once, before the first segment using it.
func (p *MediaPlaylist) Fragments() []types.Fragment {
	out := make([]types.Fragment, 0, len(p.Segments))
	var lastMap *Map
	for _, seg := range p.Segments {
		if seg.Map != nil && seg.Map != lastMap {
			out = append(out, types.Fragment{URL: seg.Map.URI, Range: seg.Map.Range})
			lastMap = seg.Map
		}
		out = append(out, types.Fragment{URL: seg.URL, Range: seg.Range, Duration: seg.Duration})
	}
	return out
}

// ParseMediaPlaylist parses an HLS media playlist. Relative URIs are
// resolved against playlistURL.
func ParseMediaPlaylist(doc, playlistURL string) (*MediaPlaylist, error) {
	scanner := bufio.NewScanner(strings.NewReader(doc))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	p := &MediaPlaylist{}
	var (
		currentKey *Key
		currentMap *Map
		duration   float64
		pending    *types.ByteRange
		nextOffset int64
		seq        int
		sawHeader  bool
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawHeader {
			if line != "#EXTM3U" {
				return nil, fmt.Errorf("not an m3u8 playlist")
			}
			sawHeader = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			if v, err := strconv.ParseFloat(line[len("#EXT-X-TARGETDURATION:"):], 64); err == nil {
				p.TargetDuration = v
			}
		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			if v, err := strconv.Atoi(line[len("#EXT-X-MEDIA-SEQUENCE:"):]); err == nil {
				p.MediaSequence = v
				seq = v
			}
		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:"):
			p.PlaylistType = strings.ToUpper(line[len("#EXT-X-PLAYLIST-TYPE:"):])
		case line == "#EXT-X-ENDLIST":
			p.EndList = true
		case strings.HasPrefix(line, "#EXT-X-KEY:"):
			currentKey = parseKey(line[len("#EXT-X-KEY:"):], playlistURL)
		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			m, err := parseMap(line[len("#EXT-X-MAP:"):], playlistURL)
			if err != nil {
				return nil, err
			}
			currentMap = m
		case strings.HasPrefix(line, "#EXTINF:"):
			raw, _, _ := strings.Cut(line[len("#EXTINF:"):], ",")
			duration, _ = strconv.ParseFloat(strings.TrimSpace(raw), 64)
		case strings.HasPrefix(line, "#EXT-X-BYTERANGE:"):
			r, err := parseByteRange(line[len("#EXT-X-BYTERANGE:"):], nextOffset)
			if err != nil {
				return nil, err
			}
			pending = r
		case strings.HasPrefix(line, "#"):
		default:
			seg := Segment{
				URL:      resolveURL(playlistURL, line),
				Duration: duration,
				Seq:      seq,
				Range:    pending,
				Key:      currentKey,
				Map:      currentMap,
			}
			if pending != nil {
				nextOffset = pending.End + 1
			} else {
				nextOffset = 0
			}
			p.Segments = append(p.Segments, seg)
			seq++
			duration = 0
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawHeader {
		return nil, fmt.Errorf("not an m3u8 playlist")
	}
	return p, nil
}

// ResolveFragments fetches the media playlist behind a deferred HLS format
// and returns its fragments. Every call refetches, so live playlists refresh.
func ResolveFragments(ctx context.Context, fetcher fetch.Fetcher, f types.Format) ([]types.Fragment, error) {
	if f.Protocol != types.ProtocolHLS {
		return f.Fragments, nil
	}
	body, err := fetcher.Fetch(ctx, f.URL, f.Headers)
	if err != nil {
		return nil, fmt.Errorf("fetch media playlist: %w", err)
	}
	p, err := ParseMediaPlaylist(string(body), f.URL)
	if err != nil {
		return nil, err
	}
	return p.Fragments(), nil
}

func parseKey(attrs, playlistURL string) *Key {
	m := ParseM3U8Attributes(attrs)
	key := &Key{Method: m["METHOD"]}
	if uri := m["URI"]; uri != "" {
		key.URI = resolveURL(playlistURL, uri)
	}
	if ivHex, ok := m["IV"]; ok {
		ivHex = strings.TrimPrefix(strings.TrimPrefix(ivHex, "0x"), "0X")
		if iv, err := hex.DecodeString(ivHex); err == nil {
			key.IV = iv
		}
	}
	if key.Method == "NONE" {
		return nil
	}
	return key
}

func parseMap(attrs, playlistURL string) (*Map, error) {
	m := ParseM3U8Attributes(attrs)
	uri, ok := m["URI"]
	if !ok {
		return nil, fmt.Errorf("URI missing in EXT-X-MAP")
	}
	out := &Map{URI: resolveURL(playlistURL, uri)}
	if raw, ok := m["BYTERANGE"]; ok {
		r, err := parseByteRange(raw, 0)
		if err != nil {
			return nil, err
		}
		out.Range = r
	}
	return out, nil
}

// parseByteRange parses <length>[@<offset>]. Without an offset the range
// starts at nextOffset.
func parseByteRange(raw string, nextOffset int64) (*types.ByteRange, error) {
	lengthRaw, offsetRaw, hasOffset := strings.Cut(strings.TrimSpace(raw), "@")
	length, err := strconv.ParseInt(lengthRaw, 10, 64)
	if err != nil || length <= 0 {
		return nil, fmt.Errorf("invalid byte range %q", raw)
	}
	start := nextOffset
	if hasOffset {
		start, err = strconv.ParseInt(offsetRaw, 10, 64)
		if err != nil || start < 0 {
			return nil, fmt.Errorf("invalid byte range %q", raw)
		}
	}
	return &types.ByteRange{Start: start, End: start + length - 1}, nil
}

// Package generic holds the built-in extractors that need no site knowledge:
// direct media files, bare manifest URLs and pages embedding either.
package generic

import (
	"net/url"
	"path"
	"strings"

	"github.com/famomatic/mediaresolve/internal/extractor"
	"github.com/famomatic/mediaresolve/internal/fetch"
)

// mediaExtensions are file extensions served as one progressive file.
var mediaExtensions = map[string]bool{
	// Video
	".mp4": true, ".webm": true, ".mov": true, ".mkv": true, ".flv": true,
	".m4v": true, ".ts": true, ".3gp": true,
	// Audio
	".mp3": true, ".m4a": true, ".aac": true, ".ogg": true, ".opus": true,
	".wav": true, ".flac": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".ogg": true, ".opus": true,
	".wav": true, ".flac": true,
}

// Extractors returns the generic extractors in match priority order.
func Extractors(fetcher fetch.Fetcher) []extractor.Extractor {
	return []extractor.Extractor{
		NewManifest(),
		NewDirect(),
		NewPage(fetcher),
	}
}

func parseHTTPURL(reference string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(reference))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

func extOf(u *url.URL) string {
	return strings.ToLower(path.Ext(u.Path))
}

// titleOf derives a title from the last path element.
func titleOf(u *url.URL) string {
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return u.Host
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// Package embed finds media references embedded in arbitrary markup.
package embed

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
)

// manifestURLRegexp matches absolute manifest and media URLs in inline
// scripts and JSON blobs.
var manifestURLRegexp = regexp.MustCompile(`https?:(?:\\?/){2}[^\s"'<>]+?\.(?:m3u8|mpd|ism/manifest|mp4|webm|mp3|m4a)(?:\?[^\s"'<>\\]*)?`)

// attribute sources, in the order references are reported.
var sources = []struct {
	selector string
	attr     string
}{
	{`meta[property="og:video:secure_url"]`, "content"},
	{`meta[property="og:video:url"]`, "content"},
	{`meta[property="og:video"]`, "content"},
	{`meta[name="twitter:player:stream"]`, "content"},
	{`video[src]`, "src"},
	{`video source[src]`, "src"},
	{`audio[src]`, "src"},
	{`audio source[src]`, "src"},
	{`iframe[src]`, "src"},
	{`embed[src]`, "src"},
	{`object[data]`, "data"},
	{`link[rel="video_src"]`, "href"},
}

// ExtractReferences returns the media and embed URLs found in markup,
// resolved against baseURL, in document order per source and without
// duplicates.
func ExtractReferences(markup, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(baseURL)

	var refs []string
	for _, src := range sources {
		doc.Find(src.selector).Each(func(_ int, s *goquery.Selection) {
			if ref, ok := resolve(base, s.AttrOr(src.attr, "")); ok {
				refs = append(refs, ref)
			}
		})
	}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		for _, raw := range manifestURLRegexp.FindAllString(s.Text(), -1) {
			if ref, ok := resolve(base, strings.ReplaceAll(raw, `\/`, "/")); ok {
				refs = append(refs, ref)
			}
		}
	})
	return lo.Uniq(refs), nil
}

func resolve(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if raw == "" || lower == "about:blank" ||
		strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}
	return ref.String(), true
}

// Title returns the page title, preferring og:title over <title>.
func Title(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	if og := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).First().AttrOr("content", "")); og != "" {
		return og
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Package cookies loads Netscape cookies.txt files into cookie jars.
package cookies

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// httpOnlyPrefix marks HttpOnly cookies in files written by browsers.
const httpOnlyPrefix = "#HttpOnly_"

// ParseNetscape parses cookies.txt lines of the form
// domain, include-subdomains, path, secure, expires, name, value.
// Malformed lines are skipped.
func ParseNetscape(r io.Reader) ([]*http.Cookie, error) {
	var out []*http.Cookie
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := strings.HasPrefix(line, httpOnlyPrefix)
		if httpOnly {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}
		c := &http.Cookie{
			Domain:   parts[0],
			Path:     parts[2],
			Secure:   strings.EqualFold(parts[3], "TRUE"),
			Name:     parts[5],
			Value:    parts[6],
			HttpOnly: httpOnly,
		}
		// Zero expiry is a session cookie.
		if expires, err := strconv.ParseInt(parts[4], 10, 64); err == nil && expires > 0 {
			c.Expires = time.Unix(expires, 0)
		}
		out = append(out, c)
	}
	return out, scanner.Err()
}

// Jar builds a cookie jar holding cookies, grouped by domain.
func Jar(cookies []*http.Cookie) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	for domain, cs := range lo.GroupBy(cookies, func(c *http.Cookie) string { return c.Domain }) {
		scheme := "http"
		if lo.SomeBy(cs, func(c *http.Cookie) bool { return c.Secure }) {
			scheme = "https"
		}
		jar.SetCookies(&url.URL{Scheme: scheme, Host: strings.TrimPrefix(domain, "."), Path: "/"}, cs)
	}
	return jar, nil
}

// LoadJar reads the cookies.txt file at path on fs into a jar.
func LoadJar(fs afero.Fs, path string) (http.CookieJar, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookies file: %w", err)
	}
	defer f.Close()

	parsed, err := ParseNetscape(f)
	if err != nil {
		return nil, fmt.Errorf("parse cookies file: %w", err)
	}
	return Jar(parsed)
}

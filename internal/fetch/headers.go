package fetch

import "net/http"

// CloneHeader deep-copies h.
func CloneHeader(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := make(http.Header, len(h))
	for k, vals := range h {
		cp := make([]string, len(vals))
		copy(cp, vals)
		out[k] = cp
	}
	return out
}

// MergeHeaders returns base overlaid by extra; extra keys replace base keys.
func MergeHeaders(base, extra http.Header) http.Header {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := CloneHeader(base)
	if out == nil {
		out = make(http.Header, len(extra))
	}
	for k, vals := range extra {
		out[http.CanonicalHeaderKey(k)] = append([]string(nil), vals...)
	}
	return out
}

func applyRequestHeaders(req *http.Request, headers http.Header) {
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
}

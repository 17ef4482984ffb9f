package article

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during canonicalization.
// Exact-match keys only; utm_* is handled as a prefix.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"mc_cid": true,
	"mc_eid": true,
	"igshid": true,
	"ref":    true,
}

// trackingPrefix matches the utm_source/utm_medium/... parameter family.
const trackingPrefix = "utm_"

// CanonicalURL normalizes an article URL into the deduplication key:
// lowercased scheme and host, "www." prefix and default ports stripped,
// fragment dropped, tracking query parameters removed. The order of the
// remaining query parameters is preserved. Canonicalization is idempotent:
// CanonicalURL(CanonicalURL(u)) == CanonicalURL(u).
//
// Unparseable URLs are returned trimmed but otherwise untouched so that
// malformed input still clusters with byte-identical duplicates.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	switch scheme {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}

	path := u.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	query := filterQuery(u.RawQuery)

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if query != "" {
		b.WriteString("?")
		b.WriteString(query)
	}
	return b.String()
}

// filterQuery removes tracking parameters from a raw query string while
// preserving the order of the remaining pairs. url.Values is not used here
// because it does not retain parameter order.
func filterQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key := pair
		if idx := strings.Index(pair, "="); idx >= 0 {
			key = pair[:idx]
		}
		key = strings.ToLower(key)
		if strings.HasPrefix(key, trackingPrefix) || trackingParams[key] {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

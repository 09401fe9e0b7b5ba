package ingest

import (
	"net/url"
	"strings"
)

// NormalizeSourceURL canonicalizes a scraped URL for use in the campaign
// natural key: lowercase scheme and host, default port and fragment
// dropped, trailing slash stripped. The query survives because it
// distinguishes campaigns on most retail sites.
func NormalizeSourceURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

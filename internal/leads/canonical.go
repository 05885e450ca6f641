// Package leads holds lead-level helpers shared by discovery, analysis and
// the API: URL canonicalization and domain extraction.
package leads

import (
	"net/url"
	"strings"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// trackingParams are stripped during canonicalization. Exactly this set;
// everything else in the query is preserved.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
}

// CanonicalizeURL normalizes a lead URL: lowercases the host, drops a
// leading www., strips tracking query parameters and preserves path and
// fragment. Returns the canonical URL and the registrable domain.
// Canonicalization is idempotent.
func CanonicalizeURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", domain.E(domain.KindInvalidInput, "url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", domain.Wrap(domain.KindInvalidInput, "invalid url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", domain.Ef(domain.KindInvalidInput, "unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", domain.E(domain.KindInvalidInput, "url has no host")
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if port := u.Port(); port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}

	q := u.Query()
	for param := range trackingParams {
		q.Del(param)
	}
	u.RawQuery = q.Encode()
	u.User = nil

	return u.String(), host, nil
}

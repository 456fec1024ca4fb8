// Package citations implements the citation pipeline: extract candidate
// URLs from wave markdown, normalize them to canonical form, assign
// content-addressed ids, validate them within bounded budgets and render
// the report Gate C consumes. The core never fetches the network itself;
// online validation is a classification stub behind an explicit extension
// point.
package citations

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"meridian/pkg/reserr"
)

// trackingParams are stripped during normalization.
var trackingParams = map[string]bool{
	"gclid":  true,
	"fbclid": true,
}

// sensitiveParams never survive into persisted URLs.
var sensitiveParams = map[string]bool{
	"token":    true,
	"key":      true,
	"apikey":   true,
	"api_key":  true,
	"secret":   true,
	"password": true,
	"auth":     true,
	"session":  true,
}

// Normalize canonicalizes a URL: lower-case host, default ports dropped,
// trailing slash stripped (except root), tracking parameters removed,
// remaining query sorted by key. Non-http(s) schemes are rejected.
// Normalize is idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(raw string) (string, *reserr.Error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", reserr.Wrap(reserr.CodeInvalidArgs, "parse url", err).With("url", raw)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", reserr.Newf(reserr.CodeInvalidArgs, "unsupported scheme %q", u.Scheme).
			With("url", raw)
	}
	u.Scheme = scheme
	u.User = nil

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}

	query := u.Query()
	for key := range query {
		if trackingParams[key] || strings.HasPrefix(strings.ToLower(key), "utm_") {
			query.Del(key)
		}
	}
	u.RawQuery = encodeSorted(query)
	u.Fragment = ""

	return u.String(), nil
}

// encodeSorted serializes query values with keys in sorted order.
func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		vals := q[k]
		sort.Strings(vals)
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// CID derives the content id for a normalized URL. The id is a pure
// function of the canonical form: however many original variants collapse
// to one normalized URL, they share one citation record.
func CID(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return "cid_" + hex.EncodeToString(sum[:])
}

// Redact strips credentials and sensitive query parameters from a URL for
// persistence. Returns the redacted URL and whether anything was removed.
// Unparsable input redacts to a fixed placeholder rather than leaking the
// raw string.
func Redact(raw string, stripAllParams bool) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid://redacted", true
	}
	redacted := false
	if u.User != nil {
		u.User = nil
		redacted = true
	}
	query := u.Query()
	if stripAllParams && len(query) > 0 {
		u.RawQuery = ""
		redacted = true
	} else {
		for key := range query {
			if sensitiveParams[strings.ToLower(key)] {
				query.Del(key)
				redacted = true
			}
		}
		if redacted {
			u.RawQuery = encodeSorted(query)
		}
	}
	return u.String(), redacted
}

// HasCredentials reports whether a URL embeds userinfo.
func HasCredentials(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.User != nil
}

// privateHost reports whether a host is local or private-range; the online
// validation stub refuses these outright.
func privateHost(host string) bool {
	host = strings.ToLower(host)
	if host == "localhost" || host == "127.0.0.1" || host == "::1" || host == "0.0.0.0" {
		return true
	}
	for _, prefix := range []string{"10.", "192.168.", "169.254."} {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	if rest, ok := strings.CutPrefix(host, "172."); ok {
		if i := strings.IndexByte(rest, '.'); i > 0 {
			if octet, err := strconv.Atoi(rest[:i]); err == nil && octet >= 16 && octet <= 31 {
				return true
			}
		}
	}
	return strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") ||
		!strings.Contains(host, ".")
}

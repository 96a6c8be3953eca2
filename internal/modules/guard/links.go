package guard

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s<>]+`)
	invitePattern = regexp.MustCompile(`(?i)(?:discord\.gg|discord(?:app)?\.com/invite)/[a-z0-9-]+`)
)

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "gclid", "igshid",
}

func extractURLs(content string) []string {
	return urlPattern.FindAllString(content, -1)
}

func hasInvite(content string) bool {
	return invitePattern.MatchString(content)
}

// normalizeURL lowercases and punycodes the host, drops credentials,
// fragments, and tracking parameters, and returns the cleaned URL together
// with its domain. Raiders lean on lookalike unicode hosts and tracking
// junk to defeat exact matching.
func normalizeURL(raw string) (string, string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}

	host := strings.ToLower(parsed.Hostname())
	if ascii, err := idna.ToASCII(host); err == nil {
		host = ascii
	}

	parsed.Host = host
	parsed.Fragment = ""
	parsed.User = nil

	query := parsed.Query()
	for _, key := range trackingParams {
		query.Del(key)
	}
	// Encode sorts by key, so equivalent URLs compare equal.
	parsed.RawQuery = query.Encode()

	return parsed.String(), host, nil
}

// domainVerdict walks the domain and its parents against the lists, so a
// ruling on example.com covers cdn.example.com as well. Allow wins over
// block at the same or a more specific label.
func domainVerdict(domain string, allow, block map[string]struct{}) (allowed, blocked bool) {
	d := strings.ToLower(domain)
	for d != "" {
		if _, ok := allow[d]; ok {
			return true, false
		}
		if _, ok := block[d]; ok {
			return false, true
		}
		idx := strings.IndexByte(d, '.')
		if idx < 0 {
			break
		}
		d = d[idx+1:]
	}
	return false, false
}

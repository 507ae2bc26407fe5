package sandbox

import (
	"net/url"
	"strings"
)

// FilterResources keeps the external script URLs the preview may load:
// absolute http or https URLs with a host. Duplicates are dropped and order is
// kept. Everything else is returned in rejected.
func FilterResources(links []string) (accepted, rejected []string) {
	accepted = []string{}
	seen := make(map[string]bool, len(links))

	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			rejected = append(rejected, link)
			continue
		}
		if seen[link] {
			continue
		}
		seen[link] = true
		accepted = append(accepted, link)
	}
	return accepted, rejected
}

// origin returns scheme://host for a URL accepted by FilterResources.
func origin(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

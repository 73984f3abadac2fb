package captation

import (
	"net/url"
	"strings"
)

// contactHosts are hosts that point at a messaging or social profile rather
// than a real website.
var contactHosts = []string{
	"wa.me",
	"api.whatsapp.com",
	"web.whatsapp.com",
	"chat.whatsapp.com",
	"whatsapp.com",
	"t.me",
	"telegram.me",
	"m.me",
	"messenger.com",
	"instagram.com",
	"facebook.com",
	"fb.com",
	"linktr.ee",
}

// IsContactLink reports whether link is a messaging deep link or social
// profile instead of a website.
func IsContactLink(link string) bool {
	link = strings.TrimSpace(link)
	if link == "" {
		return false
	}
	lower := strings.ToLower(link)
	if strings.HasPrefix(lower, "whatsapp:") || strings.HasPrefix(lower, "tg:") {
		return true
	}
	if !strings.Contains(lower, "://") {
		lower = "https://" + lower
	}
	u, err := url.Parse(lower)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	for _, h := range contactHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// classifyWebsite splits a raw website field into a website URL or a contact link.
func classifyWebsite(raw string) (website, contact string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if IsContactLink(raw) {
		return "", raw
	}
	return raw, ""
}

package apply

import (
	"net/url"
	"regexp"
	"strings"

	"autoapply-engine/internal/domain"
)

var contactEmailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// priorityWords mark addresses that plausibly belong to a hiring pipeline.
var priorityWords = []string{
	"career", "job", "recruit", "hr", "apply", "hiring", "talent", "cv", "resume",
}

var companySuffixRe = regexp.MustCompile(`\b(ltd|inc|llc|corp|company|co|limited)\b`)
var nonWordRe = regexp.MustCompile(`[^a-z0-9]`)

// ResolveContact picks the address the email fallback should target. The
// chain is deterministic and never comes up empty: an explicit contact wins,
// then a recruiting-flavored address from the description, then careers@ the
// posting's own domain, and finally careers@ a domain guessed from the
// company name.
func ResolveContact(p domain.Posting) string {
	if p.ContactEmail != "" {
		return p.ContactEmail
	}

	if addr := prioritizedAddress(p.Description); addr != "" {
		return addr
	}

	if host := urlHost(p.URL); host != "" {
		return "careers@" + host
	}

	return "careers@" + normalizeCompany(p.Company) + ".com"
}

func prioritizedAddress(text string) string {
	matches := contactEmailRe.FindAllString(text, 10)
	if len(matches) == 0 {
		return ""
	}
	for _, m := range matches {
		low := strings.ToLower(m)
		for _, w := range priorityWords {
			if strings.Contains(low, w) {
				return m
			}
		}
	}
	return matches[0]
}

func urlHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// normalizeCompany strips legal suffixes and punctuation: "Acme Corp."
// becomes "acme".
func normalizeCompany(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = companySuffixRe.ReplaceAllString(s, "")
	s = nonWordRe.ReplaceAllString(s, "")
	if s == "" {
		return "company"
	}
	return s
}

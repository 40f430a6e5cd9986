package registrations

import "strings"

// ParseDomainList splits newline-delimited configuration text into trimmed,
// non-empty domain entries.
func ParseDomainList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if d := strings.TrimSpace(line); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// IsTrusted reports whether the domain part of email (after the first '@')
// exactly matches one of domains. Matching is case-sensitive.
func IsTrusted(email string, domains []string) bool {
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return false
	}
	for _, d := range domains {
		if d == domain {
			return true
		}
	}
	return false
}

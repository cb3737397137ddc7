package logger

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// redactPIIValue masks addresses in a log field. Fields named like an email
// or recipient may hold a comma-separated list; any other field has
// embedded addresses masked in place.
func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if !strings.Contains(key, "email") && !strings.Contains(key, "recipient") {
		return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
	}
	parts := strings.Split(val, ",")
	for i, p := range parts {
		parts[i] = RedactEmail(strings.TrimSpace(p))
	}
	return strings.Join(parts, ",")
}

// RedactEmail masks the local part of an address, keeping two characters:
// "digest.bot@example.com" becomes "di***@example.com". Local parts of two
// characters or fewer are fully masked.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}

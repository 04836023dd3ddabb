package dashboard

import (
	"regexp"
	"strings"
)

var accountIDPattern = regexp.MustCompile(`accountId: "(.*?)",`)

// ParseCSRFToken extracts the token from a "prefix:TOKEN" body.
func ParseCSRFToken(body string) (string, bool) {
	parts := strings.Split(body, ":")
	if len(parts) < 2 {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

// ParseAccountID finds the account identifier embedded in the create wizard page.
func ParseAccountID(body string) (string, bool) {
	match := accountIDPattern.FindStringSubmatch(body)
	if len(match) < 2 || match[1] == "" {
		return "", false
	}

	return match[1], true
}

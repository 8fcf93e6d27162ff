// Package sanitize strips secrets and control sequences from text before
// it is logged or shown to a user. Unlike internal/secrets.Vault, which
// produces a short truncated preview for display, masked output here
// preserves the original length of each replaced span so no length class
// leaks, matching the exception- and container-log-sanitization rules.
package sanitize

import (
	"regexp"
	"strconv"
	"strings"
)

// ansiEscape matches ANSI colour/cursor escape sequences.
var ansiEscape = regexp.MustCompile("\x1b\\[[0-?]*[ -/]*[@-~]")

// Secrets sanitizes exception and log text by replacing every occurrence
// of a known secret string with an equal-length run of asterisks. Secrets
// shorter than 4 characters are skipped to avoid masking common substrings.
type Secrets struct {
	values []string
}

// NewSecrets builds a Secrets sanitizer from the given set of secret
// strings (bot tokens, webhook cert paths, auth salt, etc). Empty and
// very short values are ignored.
func NewSecrets(values ...string) *Secrets {
	s := &Secrets{}
	for _, v := range values {
		if len(v) < 4 {
			continue
		}
		s.values = append(s.values, v)
	}
	return s
}

// Redact replaces every occurrence of a known secret in text with an
// equal-length run of asterisks.
func (s *Secrets) Redact(text string) string {
	for _, v := range s.values {
		if v == "" || !strings.Contains(text, v) {
			continue
		}
		text = strings.ReplaceAll(text, v, strings.Repeat("*", len(v)))
	}
	return text
}

// ContainerLog strips ANSI escape sequences from container log text, then
// masks the given username, first name, last name, numeric user id, and
// bot token with equal-length asterisk runs. Empty identity fields are
// skipped.
func ContainerLog(text, username, firstName, lastName string, userID int64, botToken string) string {
	text = ansiEscape.ReplaceAllString(text, "")

	candidates := []string{username, firstName, lastName, botToken}
	if userID != 0 {
		candidates = append(candidates, strconv.FormatInt(userID, 10))
	}

	for _, v := range candidates {
		if v == "" || !strings.Contains(text, v) {
			continue
		}
		text = strings.ReplaceAll(text, v, strings.Repeat("*", len(v)))
	}
	return text
}

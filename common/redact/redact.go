// Package redact strips credentials from strings and maps before they are
// logged.
//
// Upstream error bodies from the generation service may echo request
// headers, and client-supplied feedback metadata is free-form, so both pass
// through here on their way to the log. Redaction is best-effort and works
// on string representations only.
package redact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const placeholder = "[REDACTED]"

// apiKeyRx matches OpenAI-style secret keys and bearer credentials.
var apiKeyRx = regexp.MustCompile(`(?i)\b(sk-[a-z0-9_-]{8,}|bearer\s+[a-z0-9._~+/=-]{8,})`)

// String replaces every occurrence of each sensitive value in s with
// [REDACTED]. Values shorter than 4 characters are skipped to avoid
// spurious redaction of common substrings.
//
//	safe := redact.String(line, apiKey)
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Body prepares a raw upstream response body for logging: known secrets and
// anything shaped like an API key or bearer token are masked, and the result
// is cut to at most limit runes (an ellipsis marks the cut). A limit of zero
// or less disables truncation.
func Body(raw []byte, limit int, sensitiveValues ...string) string {
	s := String(string(raw), sensitiveValues...)
	s = apiKeyRx.ReplaceAllString(s, placeholder)
	s = strings.Join(strings.Fields(s), " ")
	if limit > 0 && utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit]) + "…"
	}
	return s
}

// Map returns a shallow copy of m with values replaced by [REDACTED] for
// every key whose name suggests it contains a secret (password, token, key,
// secret, credential, auth). Non-string values are left unchanged.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			if str, ok := v.(string); ok && str != "" {
				out[k] = placeholder
				continue
			}
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"password", "passwd", "token", "secret", "key", "credential", "auth"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

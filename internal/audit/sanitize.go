package audit

import (
	"strings"
	"unicode"
)

const (
	redacted     = "[REDACTED]"
	maxValueLen  = 2000
	truncateMark = "…[truncated]"
)

var credentialKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"authorization", "credential", "private_key",
}

func credentialKey(key string) bool {
	k := strings.ToLower(key)
	for _, frag := range credentialKeys {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

// SanitizeMap returns a copy of m safe to persist in the audit trail:
// credential-like keys are redacted, IBAN-shaped values are masked, and
// oversized strings are truncated. Nested maps are handled recursively.
func SanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if credentialKey(k) {
			out[k] = redacted
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return SanitizeString(val)
	case map[string]any:
		return SanitizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = sanitizeValue(e)
		}
		return out
	default:
		return v
	}
}

// SanitizeString masks IBAN-like values and truncates oversized text.
func SanitizeString(s string) string {
	if looksLikeIBAN(s) {
		return MaskIBAN(s)
	}
	runes := []rune(s)
	if len(runes) > maxValueLen {
		return string(runes[:maxValueLen]) + truncateMark
	}
	return s
}

// looksLikeIBAN matches the shape of an IBAN: two letters, two digits, then
// 11 to 30 alphanumerics. Shape only; no checksum math here.
func looksLikeIBAN(s string) bool {
	t := strings.ReplaceAll(s, " ", "")
	if len(t) < 15 || len(t) > 34 {
		return false
	}
	if !unicode.IsLetter(rune(t[0])) || !unicode.IsLetter(rune(t[1])) {
		return false
	}
	if !unicode.IsDigit(rune(t[2])) || !unicode.IsDigit(rune(t[3])) {
		return false
	}
	for _, r := range t[4:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// MaskIBAN keeps the country/check prefix and the last two characters.
func MaskIBAN(s string) string {
	t := strings.ReplaceAll(s, " ", "")
	if len(t) < 6 {
		return redacted
	}
	return t[:4] + strings.Repeat("*", len(t)-6) + t[len(t)-2:]
}

// Package logging provides log sanitization helpers. Playbook action
// parameters are operator-authored and routinely carry credentials for
// the systems actions touch, so anything derived from them is masked
// before it reaches a log line or the audit trail.
package logging

import (
	"strings"
)

// SensitiveKeys contains parameter names whose values must never be logged.
var SensitiveKeys = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"auth":          true,
	"authorization": true,
	"bearer":        true,
	"bot_token":     true,
	"webhook_url":   true,
	"credentials":   true,
	"private_key":   true,
}

// MaskedValue is the string used to replace sensitive values.
const MaskedValue = "[REDACTED]"

// IsSensitiveKey reports whether a parameter name is sensitive. Matching
// is case-insensitive and substring based, so "pihole_api_key" and
// "TelegramBotToken" both count.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)

	if SensitiveKeys[lower] {
		return true
	}

	for sensitive := range SensitiveKeys {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}

	return false
}

// MaskValue returns a safe-to-log version of a parameter value based on
// its key.
func MaskValue(key string, value any) any {
	if value == nil {
		return nil
	}

	if !IsSensitiveKey(key) {
		return value
	}

	switch v := value.(type) {
	case []string:
		masked := make([]string, len(v))
		for i := range v {
			masked[i] = MaskedValue
		}
		return masked
	default:
		return MaskedValue
	}
}

// MaskParameters returns a copy of an action parameter map with every
// sensitive value replaced. Nested maps are masked recursively. The
// input map is never modified.
func MaskParameters(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}

	masked := make(map[string]any, len(params))
	for key, value := range params {
		if nested, ok := value.(map[string]any); ok && !IsSensitiveKey(key) {
			masked[key] = MaskParameters(nested)
			continue
		}
		masked[key] = MaskValue(key, value)
	}
	return masked
}

// MaskAPIKey masks an API key, showing only the first and last four
// characters for correlation in debug output.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return MaskedValue
	}
	return key[:4] + "****" + key[len(key)-4:]
}

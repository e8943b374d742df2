package logging

import (
	"bytes"
	"encoding/json"
	"strings"
)

const redacted = "***"

var secretKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"accesstoken":   {},
	"refreshtoken":  {},
	"apikey":        {},
	"authorization": {},
}

// FormatHTTPPayload normalizes request/response bodies for log output.
// JSON is pretty-printed and credential fields are masked.
func FormatHTTPPayload(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "<empty>"
	}

	var quoted string
	if err := json.Unmarshal([]byte(trimmed), &quoted); err == nil {
		trimmed = strings.TrimSpace(quoted)
	}

	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return trimmed
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(redactSecrets(value)); err != nil {
		return trimmed
	}
	return strings.TrimSpace(buf.String())
}

// RedactToken keeps a short prefix of a credential so log lines stay correlatable.
func RedactToken(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return redacted
	}
	return token[:6] + redacted
}

func redactSecrets(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for key, inner := range v {
			if _, secret := secretKeys[strings.ToLower(key)]; secret {
				if s, ok := inner.(string); ok && s != "" {
					v[key] = redacted
				}
				continue
			}
			v[key] = redactSecrets(inner)
		}
		return v
	case []any:
		for i := range v {
			v[i] = redactSecrets(v[i])
		}
		return v
	default:
		return value
	}
}

package audit

import "strings"

// sensitiveKeys are removed from entry details regardless of case.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"secret":        {},
	"api_key":       {},
	"private_key":   {},
	"session_token": {},
	"jwt":           {},
	"authorization": {},
	"cookie":        {},
}

// IsSensitiveKey reports whether key is stripped by Sanitize.
func IsSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// Sanitize returns a copy of details without sensitive keys. The input map is
// not modified. Sanitize(Sanitize(x)) equals Sanitize(x).
func Sanitize(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if IsSensitiveKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

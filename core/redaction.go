package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactSensitiveMap masks auth material, phone numbers and message bodies
// before fields reach a log sink. Identifiers stay visible.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(fields)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	switch key {
	case "code", "content", "phone", "phone_number", "username":
		return true
	}
	for _, token := range []string{"password", "secret", "token", "authorization", "code_hash", "signature", "api_key"} {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "tenant_id",
		"message_id",
		"chat_id",
		"seq",
		"event_type",
		"idempotency_key",
		"trace_id",
		"request_id":
		return true
	default:
		return false
	}
}

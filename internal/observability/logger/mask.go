package logger

import (
	"encoding/json"
	"net/http"
	"strings"
)

// sensitiveKeys are matched as substrings of lower-cased JSON keys. Only leaf
// values under them are masked; nested objects are walked.
var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"passkey",
	"consumer",
	"authorization_code",
	"encryption_key",
}

// credentialOnlyKeys are secret inside credential bags but ordinary in
// provider payloads, e.g. Flutterwave's webhook_hash.
var credentialOnlyKeys = []string{"hash"}

// Headers that carry provider webhook signatures are masked like credentials.
var sensitiveHeaders = map[string]bool{
	"authorization":        true,
	"cookie":               true,
	"x-paystack-signature": true,
	"verif-hash":           true,
	"x-callback-signature": true,
}

// MaskAuthorization masks bearer tokens, preserving the scheme.
func MaskAuthorization(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.Fields(value)
	if len(parts) == 2 && (strings.EqualFold(parts[0], "Bearer") || strings.EqualFold(parts[0], "Basic")) {
		return parts[0] + " " + maskLast4(parts[1])
	}
	return maskLast4(value)
}

// MaskHeaders returns a copy of headers with sensitive fields masked.
func MaskHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	masked := make(map[string]string, len(headers))
	for key, values := range headers {
		joined := strings.Join(values, ",")
		lower := strings.ToLower(strings.TrimSpace(key))
		switch {
		case lower == "authorization":
			masked[key] = MaskAuthorization(joined)
		case sensitiveHeaders[lower]:
			masked[key] = maskLast4(joined)
		default:
			masked[key] = joined
		}
	}
	return masked
}

// MaskJSON returns a deep-copied map with sensitive fields masked.
func MaskJSON(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = maskJSONValue(value, isSensitiveKey(key))
	}
	return out
}

// MaskPayload masks a raw JSON document. Non-object payloads are returned unchanged.
func MaskPayload(raw []byte) []byte {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	masked, err := json.Marshal(MaskJSON(obj))
	if err != nil {
		return raw
	}
	return masked
}

// MaskCredentials renders a credential bag as field names with masked values.
func MaskCredentials(creds map[string]string) map[string]string {
	out := make(map[string]string, len(creds))
	for key, value := range creds {
		if isSensitiveKey(key) || containsAny(key, credentialOnlyKeys) {
			out[key] = maskLast4(value)
			continue
		}
		out[key] = value
	}
	return out
}

// maskJSONValue masks scalars when sensitive and walks containers either way,
// so a sensitive key holding an object keeps its non-secret fields.
func maskJSONValue(value any, sensitive bool) any {
	switch typed := value.(type) {
	case map[string]any:
		return MaskJSON(typed)
	case []any:
		items := make([]any, 0, len(typed))
		for _, entry := range typed {
			items = append(items, maskJSONValue(entry, sensitive))
		}
		return items
	case nil:
		return nil
	case string:
		if sensitive {
			return maskLast4(typed)
		}
		return typed
	default:
		if sensitive {
			return "****"
		}
		return value
	}
}

func isSensitiveKey(key string) bool {
	return containsAny(key, sensitiveKeys)
}

func containsAny(key string, needles []string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, needle := range needles {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}

func maskLast4(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****" + value
	}
	return "****" + value[len(value)-4:]
}

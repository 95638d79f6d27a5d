package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces any detected secret.
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns match secrets that may appear inside free-form values,
// such as an Authorization header echoed in an error message.
//
// There is deliberately no generic hex pattern: job ids are often hex and
// must stay readable in logs.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]{8,}`),
	regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),
	regexp.MustCompile(`(?i)sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)(token|api_key|apikey|password|secret)\s*[:=]\s*[^\s,;&]{6,}`),
}

// sensitiveKeyMarkers flag field names whose values are never logged.
var sensitiveKeyMarkers = []string{
	"DIGITIZE_API_TOKEN",
	"AUTHORIZATION",
	"TOKEN",
	"API_KEY",
	"APIKEY",
	"PASSWORD",
	"SECRET",
}

// RedactSensitiveData replaces every detected secret in value.
//
// Example:
//
//	RedactSensitiveData("Authorization: Bearer abc.def.ghi123")
//	// "Authorization: [REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// IsSensitiveField reports whether a field name marks a secret.
func IsSensitiveField(fieldName string) bool {
	upper := strings.ToUpper(fieldName)
	for _, marker := range sensitiveKeyMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

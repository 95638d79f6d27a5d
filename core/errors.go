package core

import (
	"errors"
	"fmt"
)

// ConfigError is a configuration problem with an actionable instruction.
type ConfigError struct {
	Code    string // for programmatic handling
	Message string // human-readable problem
	Action  string // how to fix it
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors.
const (
	ErrCodeMissingConfig = "MISSING_CONFIG"
	ErrCodeInvalidAPIURL = "INVALID_API_URL"
	ErrCodeInvalidValue  = "INVALID_VALUE"
	ErrCodeUnreachable   = "API_UNREACHABLE"
)

// ErrMissingConfig reports a required variable that is not set.
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your environment or .env file", varName),
	}
}

// ErrInvalidAPIURL reports a malformed DIGITIZE_API_URL.
func ErrInvalidAPIURL(url, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidAPIURL,
		Message: fmt.Sprintf("Invalid DIGITIZE_API_URL '%s': %s", url, reason),
		Action:  "Set DIGITIZE_API_URL to the versioned API base (e.g., http://localhost:3000/api/v1/)",
	}
}

// ErrInvalidValue reports a variable that is set but unusable.
func ErrInvalidValue(varName, value, action string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid value for %s: %q", varName, value),
		Action:  action,
	}
}

// ErrAPIUnreachable reports that the API base URL did not answer.
func ErrAPIUnreachable(url, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnreachable,
		Message: fmt.Sprintf("Cannot reach digitization API at %s: %s", url, reason),
		Action:  "Check that the server is running and DIGITIZE_API_URL points at it",
	}
}

// GetErrorCode returns the ConfigError code in err's chain, or "".
func GetErrorCode(err error) string {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Code
	}
	return ""
}

package core

import (
	"crypto/tls"
	"net/http"
	"os"
	"strings"
	"time"
)

// Configuration defaults.
const (
	DefaultPollInterval   = 3000 * time.Millisecond
	MinPollInterval       = 100 * time.Millisecond
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxUploadSize  = 20 * BytesPerMB
	DefaultHistoryDBPath  = "./data/history.db"
	DefaultLogFile        = "digitizer.log"
)

// Config holds all configuration values for a digitizer run.
type Config struct {
	// Digitization API
	APIBaseURL string // versioned base, e.g. http://localhost:3000/api/v1/
	APIToken   string // optional bearer token

	// Job tracking
	PollInterval   time.Duration
	RequestTimeout time.Duration
	MaxUploadSize  int64

	AllowSelfSignedCerts bool

	// Job history
	HistoryEnabled bool
	HistoryDBPath  string

	// Logging
	LogFile  string
	LogLevel string
	DevMode  bool
}

// LoadConfig reads configuration from the environment. Call godotenv.Load
// first if a .env file should be honored.
//
// Only DIGITIZE_API_URL is required; everything else has a default.
func LoadConfig() (*Config, error) {
	baseURL := strings.TrimSpace(os.Getenv("DIGITIZE_API_URL"))
	if baseURL == "" {
		return nil, ErrMissingConfig("DIGITIZE_API_URL")
	}
	if err := ValidateHTTPURL(baseURL); err != nil {
		return nil, ErrInvalidAPIURL(baseURL, err.Error())
	}

	pollInterval := time.Duration(ParseIntEnv("POLL_INTERVAL_MS", int(DefaultPollInterval/time.Millisecond))) * time.Millisecond
	if pollInterval < MinPollInterval {
		return nil, ErrInvalidValue("POLL_INTERVAL_MS", os.Getenv("POLL_INTERVAL_MS"),
			"Set POLL_INTERVAL_MS to at least 100 (milliseconds)")
	}

	requestTimeout := ParseDurationEnv("REQUEST_TIMEOUT", int(DefaultRequestTimeout/time.Second))
	if requestTimeout <= 0 {
		return nil, ErrInvalidValue("REQUEST_TIMEOUT", os.Getenv("REQUEST_TIMEOUT"),
			"Set REQUEST_TIMEOUT to a positive number of seconds")
	}

	maxUpload := DefaultMaxUploadSize
	if raw := strings.TrimSpace(os.Getenv("MAX_UPLOAD_SIZE")); raw != "" {
		parsed, err := ParseBytes(raw)
		if err != nil || parsed <= 0 {
			return nil, ErrInvalidValue("MAX_UPLOAD_SIZE", raw,
				"Set MAX_UPLOAD_SIZE to a positive size, e.g. 20971520 or 20MB")
		}
		maxUpload = parsed
	}

	return &Config{
		APIBaseURL: ensureTrailingSlash(baseURL),
		APIToken:   os.Getenv("DIGITIZE_API_TOKEN"),

		PollInterval:   pollInterval,
		RequestTimeout: requestTimeout,
		MaxUploadSize:  maxUpload,

		AllowSelfSignedCerts: ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", false),

		HistoryEnabled: ParseBoolEnv("HISTORY_ENABLED", true),
		HistoryDBPath:  GetEnvOrDefault("HISTORY_DB_PATH", DefaultHistoryDBPath),

		LogFile:  GetEnvOrDefault("LOG_FILE", DefaultLogFile),
		LogLevel: os.Getenv("LOG_LEVEL"),
		DevMode:  ParseBoolEnv("DEV_MODE", false),
	}, nil
}

// GetHTTPClient returns the HTTP client shared by all API calls, honoring
// RequestTimeout and AllowSelfSignedCerts.
func GetHTTPClient(cfg *Config) *http.Client {
	client := &http.Client{
		Timeout: cfg.RequestTimeout,
	}

	if cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

// ensureTrailingSlash makes relative endpoint resolution append to the
// versioned base path instead of replacing its last segment.
func ensureTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

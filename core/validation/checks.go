package validation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"digitizer/core"
)

// MinHistoryFreeSpace is the free space below which the history check warns.
const MinHistoryFreeSpace = 50 * core.BytesPerMB

// EnvFileCheck reports whether the optional .env file exists. A missing
// file is a warning since every setting can come from the environment.
func EnvFileCheck(path string) Check {
	return Check{
		Name: "Environment file",
		Run: func(context.Context) Outcome {
			info, err := os.Stat(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				return Warned(path+" not found, using process environment only", nil)
			case err != nil:
				return Failed("cannot read "+path, err)
			case info.IsDir():
				return Failed(path+" is a directory", nil)
			}
			return Passed("%s found", path)
		},
	}
}

// APIURLCheck validates the configured API base URL.
func APIURLCheck(cfg *core.Config) Check {
	return Check{
		Name: "API URL",
		Run: func(context.Context) Outcome {
			if err := core.ValidateHTTPURL(cfg.APIBaseURL); err != nil {
				return Failed("DIGITIZE_API_URL is invalid", core.ErrInvalidAPIURL(cfg.APIBaseURL, err.Error()))
			}
			return Passed("%s", cfg.APIBaseURL)
		},
	}
}

// TokenCheck warns when no bearer token is configured.
func TokenCheck(cfg *core.Config) Check {
	return Check{
		Name: "API token",
		Run: func(context.Context) Outcome {
			if cfg.APIToken == "" {
				return Warned("DIGITIZE_API_TOKEN not set, requests are unauthenticated", nil)
			}
			return Passed("bearer token configured")
		},
	}
}

// HistoryStorageCheck verifies that the history database directory is
// writable and has at least minFree bytes available.
func HistoryStorageCheck(cfg *core.Config, minFree int64) Check {
	return Check{
		Name: "History storage",
		Run: func(context.Context) Outcome {
			if !cfg.HistoryEnabled {
				return Skipped("HISTORY_ENABLED=false")
			}

			dir := filepath.Dir(cfg.HistoryDBPath)
			if err := checkWritableDir(dir); err != nil {
				return Failed("history directory is not writable", err)
			}

			info, err := GetDiskSpace(dir)
			if err != nil {
				return Warned("could not determine free space", err)
			}
			if info.Free < minFree {
				return Warned(fmt.Sprintf("low disk space at %s", info.Path), &DiskSpaceError{
					Path:      info.Path,
					Required:  minFree,
					Available: info.Free,
				})
			}
			return Passed("%s (%s free)", cfg.HistoryDBPath, core.FormatBytes(info.Free))
		},
	}
}

// checkWritableDir creates dir if needed and writes a probe file into it.
func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".digitizer-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// ConnectivityCheck sends a HEAD request to the API base URL. Any HTTP
// response counts as reachable; only transport failures fail the check.
func ConnectivityCheck(cfg *core.Config, client *http.Client) Check {
	return Check{
		Name:          "API connectivity",
		NeedsPrevious: true,
		Run: func(ctx context.Context) Outcome {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, cfg.APIBaseURL, nil)
			if err != nil {
				return Failed("failed to create request", core.ErrAPIUnreachable(cfg.APIBaseURL, err.Error()))
			}

			start := time.Now()
			resp, err := client.Do(req)
			latency := time.Since(start).Round(time.Millisecond)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return Failed("connection timed out", core.ErrAPIUnreachable(cfg.APIBaseURL, err.Error()))
				}
				return Failed("connection failed", core.ErrAPIUnreachable(cfg.APIBaseURL, err.Error()))
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			return Passed("reachable (status %d, latency %v)", resp.StatusCode, latency)
		},
	}
}

// DefaultChecks returns the full preflight for cfg.
func DefaultChecks(cfg *core.Config, client *http.Client, envPath string) []Check {
	return []Check{
		EnvFileCheck(envPath),
		APIURLCheck(cfg),
		TokenCheck(cfg),
		HistoryStorageCheck(cfg, MinHistoryFreeSpace),
		ConnectivityCheck(cfg, client),
	}
}

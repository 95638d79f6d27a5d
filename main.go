// Command digitizer submits an image for digitization (OCR + translation),
// follows the job until it finishes, and prints the result.
//
//	digitizer -url https://example.com/note.png -lang en
//	digitizer -file ./scan.jpg -lang de -output json
//	digitizer -history 10
//	digitizer -check
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"digitizer/core"
	"digitizer/core/validation"
	"digitizer/db"
	"digitizer/digitize"
	"digitizer/digitizeapi"
	"digitizer/logging"
	"digitizer/shutdown"
)

// envFile is loaded from the working directory when present.
const envFile = ".env"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options are the parsed command-line flags.
type options struct {
	imageURL string
	filePath string
	lang     string
	output   string
	history  int
	check    bool
	version  bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	flags := flag.NewFlagSet("digitizer", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.imageURL, "url", "", "image URL to digitize")
	flags.StringVar(&opts.filePath, "file", "", "image file to upload and digitize")
	flags.StringVar(&opts.lang, "lang", "en", "target language for the translation")
	flags.StringVar(&opts.output, "output", outputText, "result format: text, json or yaml")
	flags.IntVar(&opts.history, "history", 0, "print the N most recent finished jobs and exit")
	flags.BoolVar(&opts.check, "check", false, "run preflight checks against the configuration and API, then exit")
	flags.BoolVar(&opts.version, "version", false, "print version information and exit")

	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	if opts.version {
		return opts, nil
	}
	if flags.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}

	switch opts.output {
	case outputText, outputJSON, outputYAML:
	default:
		return opts, fmt.Errorf("-output must be text, json or yaml, got %q", opts.output)
	}

	if opts.history < 0 {
		return opts, errors.New("-history must be positive")
	}
	if opts.check {
		if opts.history > 0 || opts.imageURL != "" || opts.filePath != "" {
			return opts, errors.New("-check cannot be combined with -history, -url or -file")
		}
		return opts, nil
	}
	if opts.history > 0 {
		if opts.imageURL != "" || opts.filePath != "" {
			return opts, errors.New("-history cannot be combined with -url or -file")
		}
		return opts, nil
	}

	if (opts.imageURL == "") == (opts.filePath == "") {
		return opts, errors.New("exactly one of -url or -file is required")
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return core.ExitCodeSuccess
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return core.ExitCodeUsage
	}
	if opts.version {
		fmt.Fprintln(stdout, core.VersionInfo())
		return core.ExitCodeSuccess
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "Warning: failed to load %s: %v\n", envFile, err)
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return core.ExitCodeError
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}

	manager := shutdown.NewManager(logger)
	manager.Register("sync-logger", shutdown.PrioritySyncLogger, func(context.Context) error {
		// Syncing a terminal fails on some platforms; the file is what matters.
		_ = logger.Sync()
		return nil
	})
	manager.Start()
	defer manager.Shutdown()

	ctx := manager.Context()

	logger.Info("configuration loaded",
		zap.String("api_url", cfg.APIBaseURL),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Int64("max_upload_size", cfg.MaxUploadSize),
		zap.Bool("history_enabled", cfg.HistoryEnabled),
		zap.Bool("dev_mode", cfg.DevMode))

	if opts.check {
		result := validation.NewSuite(stdout, "Digitizer Preflight").
			Run(ctx, validation.DefaultChecks(cfg, core.GetHTTPClient(cfg), envFile))
		if !result.Success() {
			firstErr := result.FirstError()
			logger.Error("preflight failed",
				zap.String("summary", result.Summary()),
				zap.String("error_code", core.GetErrorCode(firstErr)),
				zap.Error(firstErr))
			return core.ExitCodeError
		}
		logger.Info("preflight finished", zap.String("summary", result.Summary()))
		return core.ExitCodeSuccess
	}

	history := openHistory(ctx, cfg, logger, manager)

	if opts.history > 0 {
		if history == nil {
			fmt.Fprintln(stderr, "Error: job history is not available (HISTORY_ENABLED=false or the database failed to open)")
			return core.ExitCodeError
		}
		records, err := history.QueryRecent(ctx, opts.history)
		if err != nil {
			logger.Error("failed to read job history", zap.Error(err))
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return core.ExitCodeError
		}
		total, err := history.Count(ctx)
		if err != nil {
			logger.Warn("failed to count job history", zap.Error(err))
			total = int64(len(records))
		}
		if err := writeHistory(stdout, opts.output, records, total); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return core.ExitCodeError
		}
		return core.ExitCodeSuccess
	}

	src, err := buildSource(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return core.ExitCodeUsage
	}
	if src.File != nil {
		colorDim.Fprintln(stderr, describeUpload(src.File.Name, len(src.File.Data)))
	}

	client, err := digitizeapi.NewClient(digitizeapi.ClientConfig{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
	}, core.GetHTTPClient(cfg), logger)
	if err != nil {
		logger.Error("failed to create API client", zap.Error(err))
		return core.ExitCodeError
	}

	tracker, err := digitize.NewTracker(client, digitize.TrackerConfig{
		PollInterval:  cfg.PollInterval,
		MaxUploadSize: cfg.MaxUploadSize,
	}, logger)
	if err != nil {
		logger.Error("failed to create tracker", zap.Error(err))
		return core.ExitCodeError
	}
	manager.Register("stop-tracking", shutdown.PriorityStopTracking, core.StopFunc(tracker.Stop))

	if history != nil {
		tracker.Observe(db.NewRecorder(history, logger).Observe)
	}
	tracker.Observe(newProgressRenderer(stderr).Observe)

	return track(ctx, tracker, src, opts.output, stdout, stderr, manager)
}

// track submits src, waits for the job to finish and prints the result.
func track(ctx context.Context, tracker *digitize.Tracker, src digitize.Source, format string, stdout, stderr io.Writer, manager *shutdown.Manager) int {
	if _, err := tracker.Submit(ctx, src); err != nil {
		var valErr *digitize.ValidationError
		if errors.As(err, &valErr) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return core.ExitCodeUsage
		}
		if werr := writeResult(stdout, format, tracker.View()); werr != nil {
			fmt.Fprintf(stderr, "Error: %v\n", werr)
		}
		return core.ExitCodeError
	}

	view, err := tracker.Wait(ctx)
	if err != nil || (manager.IsShuttingDown() && !view.Phase.IsTerminal()) {
		tracker.Stop()
		code := manager.ExitCode()
		if code == core.ExitCodeSuccess {
			code = core.ExitCodeError
		}
		fmt.Fprintf(stderr, "Interrupted (%s); the job keeps running on the server.\n", core.ExitCodeName(code))
		return code
	}

	if err := writeResult(stdout, format, view); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return core.ExitCodeError
	}
	return exitCodeForView(view)
}

// exitCodeForView maps a finished session to the process exit code.
func exitCodeForView(v digitize.View) int {
	switch v.Phase {
	case digitize.PhaseCompleted:
		return core.ExitCodeSuccess
	case digitize.PhaseFailed:
		if v.Err != nil {
			return core.ExitCodeError // status fetch failed
		}
		return core.ExitCodeJobFailed
	default:
		return core.ExitCodeError
	}
}

func buildSource(opts options) (digitize.Source, error) {
	if opts.imageURL != "" {
		return digitize.URLSource(opts.imageURL, opts.lang), nil
	}

	data, err := os.ReadFile(opts.filePath)
	if err != nil {
		return digitize.Source{}, fmt.Errorf("failed to read image file: %w", err)
	}
	return digitize.FileSource(filepath.Base(opts.filePath), data, opts.lang), nil
}

func newLogger(cfg *core.Config) (*logging.Logger, error) {
	defaultLevel := zapcore.InfoLevel
	if cfg.DevMode {
		defaultLevel = zapcore.DebugLevel
	}
	level := logging.ParseLevel(cfg.LogLevel, defaultLevel)
	return logging.NewLoggerWithLevel(cfg.DevMode, cfg.LogFile, level, logging.DefaultFileWriterConfig())
}

// openHistory opens the job history store and registers its cleanup. It
// returns nil when history is disabled or unavailable; tracking works
// without it.
func openHistory(ctx context.Context, cfg *core.Config, logger *logging.Logger, manager *shutdown.Manager) *db.Repository {
	if !cfg.HistoryEnabled {
		return nil
	}

	database, err := db.Open(ctx, cfg.HistoryDBPath)
	if err != nil {
		logger.Warn("job history disabled: failed to open database",
			zap.String("path", cfg.HistoryDBPath),
			zap.Error(err))
		return nil
	}

	historyLog := logger.Named("history")
	historyLog.Debug("job history opened", zap.String("path", database.Path()))

	repo := db.NewRepository(database, nil)
	writerConfig := db.DefaultAsyncWriterConfig()
	writerConfig.OnError = func(_ db.WriteOperation, err error) {
		historyLog.Warn("failed to write job history", zap.Error(err))
	}
	writer := db.NewAsyncWriter(repo.AsyncWriteHandler(), writerConfig)
	repo.SetAsyncWriter(writer)
	writer.Start()

	manager.Register("drain-history", shutdown.PriorityDrainHistory, func(ctx context.Context) error {
		timeout := db.DefaultDrainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		historyLog.Debug("draining job history", zap.Int("pending", writer.Pending()))
		if !writer.Close(timeout) {
			return fmt.Errorf("history writer did not drain within %v", timeout)
		}
		return nil
	})
	manager.Register("close-history", shutdown.PriorityCloseHistory, core.CloserFunc(database))

	return repo
}

package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees log output to a console writer and a file writer.
//
// The file side always uses the JSON encoder. The console side is colored and
// human readable in development mode and JSON otherwise.
//
// Example:
//
//	var buf bytes.Buffer
//	core := NewMultiCore(zapcore.DebugLevel, zapcore.AddSync(os.Stdout), zapcore.AddSync(&buf), true)
//	logger := zap.New(core)
func NewMultiCore(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		fileWriter,
		level,
	)

	var consoleEncoder zapcore.Encoder
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}

	consoleCore := zapcore.NewCore(consoleEncoder, consoleWriter, level)

	return zapcore.NewTee(consoleCore, fileCore)
}

// consoleSyncer writes to stderr so log lines never interleave with the
// result the CLI prints on stdout. Sync is a no-op: syncing a terminal
// returns EINVAL on Linux.
type consoleSyncer struct{}

func (consoleSyncer) Write(p []byte) (int, error) {
	return os.Stderr.Write(p)
}

func (consoleSyncer) Sync() error {
	return nil
}

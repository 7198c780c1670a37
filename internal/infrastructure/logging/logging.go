// Package logging builds the zap logger used across crew.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/felixgeelhaar/crew/internal/infrastructure/config"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

// New builds a logger writing to w, and to .crew/crew.log under root when
// cfg.File is set. The returned close func syncs and closes the log file.
func New(cfg config.LogConfig, root string, w io.Writer) (*zap.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(w), level),
	}

	closeFn := func() error { return nil }
	if cfg.File && root != "" {
		if err := storage.NewFilesystemRepository(root).Initialize(); err != nil {
			return nil, nil, err
		}
		path := filepath.Join(root, storage.CrewDir, storage.LogFile)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- fixed name below the workspace
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(f), level))
		closeFn = func() error {
			_ = f.Sync()
			return f.Close()
		}
	}

	logger := zap.New(zapcore.NewTee(cores...)).Named("crew")
	return logger, closeFn, nil
}

// newEncoder creates JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// Package logging builds the structured logger used by the command line
// tool and adapts it to the client Logger interface.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/famomatic/mediaresolve/internal/types"
)

// Options configures New.
type Options struct {
	// Level is a logrus level name. Unknown levels fall back to info.
	Level string
	// JSON selects the JSON formatter instead of text.
	JSON bool
	// File, when set, receives a rotated copy of every line.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Output is the console writer. Defaults to stderr.
	Output io.Writer
}

// New returns a logger configured from opts and a closer for the log file,
// if any.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.File == "" {
		logger.SetOutput(out)
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, err
	}
	fileWriter := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	logger.SetOutput(io.MultiWriter(out, fileWriter))
	return logger, fileWriter, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Adapter exposes a logrus entry through Warnf/Debugf.
type Adapter struct {
	entry *logrus.Entry
}

// NewAdapter wraps logger. A nil logger discards everything.
func NewAdapter(logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Adapter{entry: logrus.NewEntry(logger)}
}

// WithContext returns an adapter tagging lines with the request id and
// extractor name carried by ctx.
func (a *Adapter) WithContext(ctx context.Context) *Adapter {
	entry := a.entry
	if id, ok := types.RequestIDFromContext(ctx); ok {
		entry = entry.WithField("request_id", id)
	}
	if name, ok := types.ExtractorNameFromContext(ctx); ok {
		entry = entry.WithField("extractor", name)
	}
	return &Adapter{entry: entry}
}

// ForContext is WithContext satisfying types.ContextLogger.
func (a *Adapter) ForContext(ctx context.Context) types.Logger {
	return a.WithContext(ctx)
}

// WithField returns an adapter tagging lines with key.
func (a *Adapter) WithField(key string, value any) *Adapter {
	return &Adapter{entry: a.entry.WithField(key, value)}
}

func (a *Adapter) Warnf(format string, args ...any) {
	a.entry.Warnf(format, args...)
}

func (a *Adapter) Debugf(format string, args ...any) {
	a.entry.Debugf(format, args...)
}

func (a *Adapter) Infof(format string, args ...any) {
	a.entry.Infof(format, args...)
}

func (a *Adapter) Errorf(format string, args ...any) {
	a.entry.Errorf(format, args...)
}

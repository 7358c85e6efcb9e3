// Package file implements the file reporter: records are appended to a
// newline-delimited file rotated by size.
package file

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/siemtap/internal/core"
	"firestige.xyz/siemtap/internal/log"
	"firestige.xyz/siemtap/pkg/plugin"
)

// Config represents file reporter configuration.
type Config struct {
	Path       string `mapstructure:"path"`         // required
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // default 100
	MaxBackups int    `mapstructure:"max_backups"`  // default 5
	MaxAgeDays int    `mapstructure:"max_age_days"` // default 30
	Compress   bool   `mapstructure:"compress"`
}

// Reporter appends records to a rotating file.
type Reporter struct {
	name   string
	config Config

	mu     sync.Mutex
	writer *lumberjack.Logger

	reportedCount atomic.Uint64
}

// NewReporter creates a file reporter.
func NewReporter() plugin.Reporter {
	return &Reporter{name: "file"}
}

// Name returns the plugin name.
func (r *Reporter) Name() string {
	return r.name
}

// Init initializes the reporter with configuration.
func (r *Reporter) Init(config map[string]any) error {
	cfg := Config{MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30}
	if err := plugin.DecodeOptions(config, &cfg); err != nil {
		return fmt.Errorf("file: %w", err)
	}
	if cfg.Path == "" {
		return fmt.Errorf("file: path is required")
	}
	if cfg.MaxSizeMB <= 0 {
		return fmt.Errorf("file: max_size_mb must be positive")
	}

	r.config = cfg
	r.writer = &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,  // megabytes
		MaxBackups: cfg.MaxBackups, // number of backups
		MaxAge:     cfg.MaxAgeDays, // days
		Compress:   cfg.Compress,   // compress the backups
	}
	return nil
}

// Start starts the reporter. The file is opened on first write.
func (r *Reporter) Start(ctx context.Context) error {
	log.GetLogger().WithField("path", r.config.Path).Info("file reporter started")
	return nil
}

// Stop closes the file.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("file: close failed: %w", err)
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"path":           r.config.Path,
		"total_reported": r.reportedCount.Load(),
	}).Info("file reporter stopped")
	return nil
}

// Report appends one record.
func (r *Reporter) Report(ctx context.Context, rec *core.OutputRecord) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.writer.Write(rec.Bytes()); err != nil {
		return fmt.Errorf("file: write failed: %w", err)
	}
	r.reportedCount.Add(1)
	return nil
}

// Flush is a no-op; lumberjack writes through to the file.
func (r *Reporter) Flush(ctx context.Context) error {
	return nil
}

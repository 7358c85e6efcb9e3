// Package console implements the console reporter.
// Writes each rendered record to stdout.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"firestige.xyz/siemtap/internal/core"
	"firestige.xyz/siemtap/internal/log"
	"firestige.xyz/siemtap/pkg/plugin"
)

// Config represents console reporter configuration.
type Config struct {
	Stream string `mapstructure:"stream"` // stdout | stderr, default stdout
}

// Reporter writes rendered records to a stream.
type Reporter struct {
	name string

	mu  sync.Mutex
	out io.Writer

	reportedCount atomic.Uint64
}

// NewReporter creates a console reporter writing to stdout.
func NewReporter() plugin.Reporter {
	return NewWriterReporter(os.Stdout)
}

// NewWriterReporter creates a console reporter writing to w.
func NewWriterReporter(w io.Writer) *Reporter {
	return &Reporter{name: "console", out: w}
}

// Name returns the plugin name.
func (r *Reporter) Name() string {
	return r.name
}

// Init initializes the reporter with configuration.
func (r *Reporter) Init(config map[string]any) error {
	var cfg Config
	if err := plugin.DecodeOptions(config, &cfg); err != nil {
		return fmt.Errorf("console: %w", err)
	}

	switch cfg.Stream {
	case "":
	case "stdout":
		r.out = os.Stdout
	case "stderr":
		r.out = os.Stderr
	default:
		return fmt.Errorf("console: invalid stream %q, must be stdout or stderr", cfg.Stream)
	}
	return nil
}

// Start starts the reporter.
func (r *Reporter) Start(ctx context.Context) error {
	log.GetLogger().Debug("console reporter started")
	return nil
}

// Stop stops the reporter.
func (r *Reporter) Stop(ctx context.Context) error {
	log.GetLogger().WithField("total_reported", r.reportedCount.Load()).Debug("console reporter stopped")
	return nil
}

// Report writes one record followed by a newline unless the rendering
// already ends with one.
func (r *Reporter) Report(ctx context.Context, rec *core.OutputRecord) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.out.Write(rec.Bytes()); err != nil {
		return fmt.Errorf("console: write failed: %w", err)
	}
	r.reportedCount.Add(1)
	return nil
}

// Flush is a no-op; writes are unbuffered.
func (r *Reporter) Flush(ctx context.Context) error {
	return nil
}

// Reported returns the number of records written.
func (r *Reporter) Reported() uint64 {
	return r.reportedCount.Load()
}

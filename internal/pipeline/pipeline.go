// Package pipeline implements the capture-decode-render-report loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"firestige.xyz/siemtap/internal/core"
	"firestige.xyz/siemtap/internal/core/decoder"
	"firestige.xyz/siemtap/internal/log"
	"firestige.xyz/siemtap/internal/metrics"
	"firestige.xyz/siemtap/internal/render"
	"firestige.xyz/siemtap/pkg/plugin"
)

const defaultBufferSize = 1024

// Pipeline reads frames from one capture handle, decodes and renders each
// frame once and hands the result to every reporter.
type Pipeline struct {
	sessionID    string
	hostname     string
	decoder      decoder.Decoder
	handle       plugin.Handle
	format       render.Format
	reporters    []plugin.Reporter
	maxPackets   uint64
	bufferSize   int
	dropWhenFull bool
	logger       log.Logger
	metrics      *Metrics

	startedMu sync.Mutex
	started   []plugin.Reporter
}

// Config contains pipeline configuration.
type Config struct {
	SessionID  string
	Hostname   string        // stamped on every output record
	Handle     plugin.Handle // owned by the pipeline once Run is called
	Format     render.Format
	Reporters  []plugin.Reporter
	MaxPackets int // 0 = unlimited
	BufferSize int // frame channel capacity, default 1024

	// DropWhenFull drops frames instead of blocking the reader when the
	// frame channel is full. Live sources set it; replays must not lose
	// frames.
	DropWhenFull bool

	Decoder decoder.Decoder // default decoder.NewStandardDecoder()
	Logger  log.Logger      // default log.GetLogger()
}

// New creates a new pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Handle == nil {
		return nil, fmt.Errorf("pipeline: capture handle is required")
	}
	if cfg.MaxPackets < 0 {
		return nil, fmt.Errorf("pipeline: max packets must not be negative")
	}
	if cfg.Format == "" {
		cfg.Format = render.FormatJSON
	}
	if _, err := render.ParseFormat(string(cfg.Format)); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.NewStandardDecoder()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.GetLogger()
	}

	return &Pipeline{
		sessionID:    cfg.SessionID,
		hostname:     cfg.Hostname,
		decoder:      cfg.Decoder,
		handle:       cfg.Handle,
		format:       cfg.Format,
		reporters:    cfg.Reporters,
		maxPackets:   uint64(cfg.MaxPackets),
		bufferSize:   cfg.BufferSize,
		dropWhenFull: cfg.DropWhenFull,
		logger: cfg.Logger.WithFields(map[string]interface{}{
			"session_id": cfg.SessionID,
			"hostname":   cfg.Hostname,
		}),
		metrics: NewMetrics(),
	}, nil
}

// Start starts every reporter. If one fails, those already started are
// stopped again.
func (p *Pipeline) Start(ctx context.Context) error {
	p.startedMu.Lock()
	defer p.startedMu.Unlock()

	for _, r := range p.reporters {
		if err := r.Start(ctx); err != nil {
			for _, s := range p.started {
				if stopErr := s.Stop(ctx); stopErr != nil {
					p.logger.WithError(stopErr).WithField("reporter", s.Name()).Warn("reporter stop failed")
				}
			}
			p.started = nil
			return fmt.Errorf("pipeline: start reporter %s: %w", r.Name(), err)
		}
		p.started = append(p.started, r)
	}
	return nil
}

// Run processes frames until ctx is cancelled, the source ends or
// MaxPackets records were emitted. It closes the handle before returning.
// Read errors other than end of stream and timeouts are returned.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.logger.WithFields(map[string]interface{}{
		"format":      string(p.format),
		"reporters":   len(p.reporters),
		"max_packets": p.maxPackets,
	}).Info("pipeline starting")

	frames := make(chan plugin.Frame, p.bufferSize)
	captureErr := make(chan error, 1)
	go func() {
		captureErr <- p.captureLoop(ctx, frames)
		close(frames)
	}()

	p.processLoop(ctx, frames)
	p.recordCaptureStats()

	// Stop the reader: cancel first so a returning read sees ctx done, then
	// close the handle to wake a blocked one.
	cancel()
	if err := p.handle.Close(); err != nil {
		p.logger.WithError(err).Warn("capture close failed")
	}
	for range frames {
	}
	err := <-captureErr

	stats := p.Stats()
	p.logger.WithFields(map[string]interface{}{
		"received":      stats.Received,
		"decoded":       stats.Decoded,
		"reported":      stats.Reported,
		"report_errors": stats.ReportErrors,
		"dropped":       stats.Dropped,
	}).Info("pipeline finished")

	return err
}

// Stop flushes and stops the reporters started by Start.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.startedMu.Lock()
	defer p.startedMu.Unlock()

	var errs []error
	for _, r := range p.started {
		if err := r.Flush(ctx); err != nil {
			p.logger.WithError(err).WithField("reporter", r.Name()).Error("reporter flush failed")
			errs = append(errs, err)
		}
		if err := r.Stop(ctx); err != nil {
			p.logger.WithError(err).WithField("reporter", r.Name()).Error("reporter stop failed")
			errs = append(errs, err)
		}
	}
	p.started = nil
	return errors.Join(errs...)
}

// captureLoop reads frames and sends them to the processing channel.
func (p *Pipeline) captureLoop(ctx context.Context, frames chan<- plugin.Frame) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := p.handle.ReadFrame()
		switch {
		case err == nil:
		case errors.Is(err, core.ErrCaptureTimeout):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, core.ErrCaptureClosed):
			return nil
		default:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pipeline: read frame: %w", err)
		}

		p.metrics.Received.Add(1)
		metrics.CaptureFramesTotal.Inc()

		if p.dropWhenFull {
			select {
			case frames <- frame:
			case <-ctx.Done():
				return nil
			default:
				p.metrics.Dropped.Add(1)
				metrics.CaptureDropsTotal.Inc()
			}
			continue
		}

		select {
		case frames <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}

// processLoop is the main processing loop.
func (p *Pipeline) processLoop(ctx context.Context, frames <-chan plugin.Frame) {
	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-frames:
			if !ok {
				return
			}

			p.processFrame(ctx, frame)

			if p.maxPackets > 0 && p.metrics.Decoded.Load() >= p.maxPackets {
				p.logger.WithField("max_packets", p.maxPackets).Debug("packet limit reached")
				return
			}
		}
	}
}

// processFrame decodes, renders and reports one frame.
func (p *Pipeline) processFrame(ctx context.Context, frame plugin.Frame) {
	data := frame.Data
	if n := int(frame.Meta.CaptureLen); n < len(data) {
		data = data[:n]
	}

	rec := p.decoder.Decode(frame.Meta, data)
	p.metrics.observe(&rec)

	line, err := render.Render(p.format, &rec, data)
	if err != nil {
		// Format was validated in New.
		p.logger.WithError(err).Error("render failed")
		return
	}

	out := &core.OutputRecord{
		SessionID: p.sessionID,
		Hostname:  p.hostname,
		Record:    rec,
		Format:    string(p.format),
		Line:      line,
	}

	reported := false
	for _, r := range p.reporters {
		if err := r.Report(ctx, out); err != nil {
			p.metrics.ReportErrors.Add(1)
			metrics.ReporterErrorsTotal.WithLabelValues(r.Name()).Inc()
			p.logger.WithError(err).WithField("reporter", r.Name()).Debug("reporter failed")
			continue
		}
		reported = true
		metrics.ReporterRecordsTotal.WithLabelValues(r.Name()).Inc()
	}
	if reported {
		p.metrics.Reported.Add(1)
	}
}

func (p *Pipeline) recordCaptureStats() {
	cs := p.handle.Stats()
	p.metrics.CaptureDropped.Store(cs.PacketsDropped + cs.PacketsIfDropped)
	if cs.PacketsDropped+cs.PacketsIfDropped > 0 {
		metrics.CaptureDropsTotal.Add(float64(cs.PacketsDropped + cs.PacketsIfDropped))
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return p.metrics.snapshot()
}

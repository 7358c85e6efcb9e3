package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"firestige.xyz/siemtap/internal/config"
	"firestige.xyz/siemtap/internal/log"
	"firestige.xyz/siemtap/internal/pipeline"
	"firestige.xyz/siemtap/internal/privilege"
	"firestige.xyz/siemtap/internal/render"
	"firestige.xyz/siemtap/pkg/plugin"
	_ "firestige.xyz/siemtap/plugins" // built-in plugins
	"firestige.xyz/siemtap/plugins/reporter/console"
)

// runSession opens the configured source, runs one pipeline to completion
// and stops its reporters. Console reporters write to stdout.
func runSession(ctx context.Context, cfg *config.GlobalConfig, stdout io.Writer) (pipeline.Stats, error) {
	factory, err := plugin.GetCapturerFactory(cfg.Capture.Source)
	if err != nil {
		return pipeline.Stats{}, err
	}
	capturer := factory()
	if err := capturer.Init(cfg.Capture.Options); err != nil {
		return pipeline.Stats{}, fmt.Errorf("init capture source %s: %w", cfg.Capture.Source, err)
	}

	reporters, err := buildReporters(cfg.Reporters, stdout)
	if err != nil {
		return pipeline.Stats{}, err
	}

	format, err := render.ParseFormat(cfg.Output.Format)
	if err != nil {
		return pipeline.Stats{}, err
	}

	handle, err := capturer.Open(cfg.Capture.CaptureOptions())
	if err != nil {
		return pipeline.Stats{}, fmt.Errorf("open capture source %s: %w", cfg.Capture.Source, err)
	}

	sessionID := uuid.NewString()
	p, err := pipeline.NewBuilder().
		WithSessionID(sessionID).
		WithHostname(cfg.Node.Hostname).
		WithHandle(handle).
		WithFormat(format).
		WithReporters(reporters...).
		WithMaxPackets(cfg.Capture.MaxPackets).
		WithBufferSize(cfg.Capture.BufferSize).
		WithDropWhenFull(cfg.Capture.Source != config.SourceFile).
		Build()
	if err != nil {
		handle.Close()
		return pipeline.Stats{}, err
	}

	if err := p.Start(ctx); err != nil {
		handle.Close()
		return pipeline.Stats{}, err
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"session_id": sessionID,
		"hostname":   cfg.Node.Hostname,
		"source":     cfg.Capture.Source,
		"interface":  cfg.Capture.Interface,
		"file":       cfg.Capture.File,
		"filter":     cfg.Capture.Filter,
	}).Info("capture session started")

	runErr := p.Run(ctx)
	// Reporters are stopped even when ctx was cancelled by a signal.
	stopErr := p.Stop(context.WithoutCancel(ctx))
	return p.Stats(), errors.Join(runErr, stopErr)
}

// buildReporters creates and initializes one reporter per config entry.
func buildReporters(cfgs []config.ReporterConfig, stdout io.Writer) ([]plugin.Reporter, error) {
	reporters := make([]plugin.Reporter, 0, len(cfgs))
	for i, rc := range cfgs {
		var r plugin.Reporter
		if rc.Type == "console" {
			r = console.NewWriterReporter(stdout)
		} else {
			factory, err := plugin.GetReporterFactory(rc.Type)
			if err != nil {
				return nil, fmt.Errorf("reporters[%d]: %w", i, err)
			}
			r = factory()
		}
		if err := r.Init(rc.Options); err != nil {
			return nil, fmt.Errorf("reporters[%d] (%s): %w", i, rc.Type, err)
		}
		reporters = append(reporters, r)
	}
	return reporters, nil
}

// warnIfUnprivileged logs a warning when a live source is used without
// capture privileges. Opening the source may still succeed.
func warnIfUnprivileged(checker privilege.Checker, source string) {
	if source == config.SourceFile {
		return
	}
	ok, err := checker.Elevated()
	if err != nil {
		log.GetLogger().WithError(err).Warn("could not determine capture privileges")
		return
	}
	if !ok {
		log.GetLogger().WithField("hint", privilege.Hint()).Warn("live capture usually requires elevated privileges")
	}
}

// loadConfig loads the config file and initializes logging from it.
func loadConfig() (*config.GlobalConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := log.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, nil
}

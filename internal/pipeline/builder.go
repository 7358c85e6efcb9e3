package pipeline

import (
	"firestige.xyz/siemtap/internal/core/decoder"
	"firestige.xyz/siemtap/internal/log"
	"firestige.xyz/siemtap/internal/render"
	"firestige.xyz/siemtap/pkg/plugin"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		config: Config{
			Format:     render.FormatJSON,
			BufferSize: defaultBufferSize,
		},
	}
}

// WithSessionID sets the id stamped on every output record.
func (b *Builder) WithSessionID(id string) *Builder {
	b.config.SessionID = id
	return b
}

// WithHostname sets the node name stamped on every output record.
func (b *Builder) WithHostname(name string) *Builder {
	b.config.Hostname = name
	return b
}

// WithDecoder replaces the standard decoder.
func (b *Builder) WithDecoder(d decoder.Decoder) *Builder {
	b.config.Decoder = d
	return b
}

// WithHandle sets the capture handle.
func (b *Builder) WithHandle(h plugin.Handle) *Builder {
	b.config.Handle = h
	return b
}

// WithFormat sets the output format.
func (b *Builder) WithFormat(f render.Format) *Builder {
	b.config.Format = f
	return b
}

// WithReporters sets the reporter chain.
func (b *Builder) WithReporters(reporters ...plugin.Reporter) *Builder {
	b.config.Reporters = reporters
	return b
}

// WithMaxPackets stops the pipeline after n records; 0 means no limit.
func (b *Builder) WithMaxPackets(n int) *Builder {
	b.config.MaxPackets = n
	return b
}

// WithBufferSize sets the frame channel buffer size.
func (b *Builder) WithBufferSize(size int) *Builder {
	b.config.BufferSize = size
	return b
}

// WithDropWhenFull makes the reader drop frames instead of blocking.
func (b *Builder) WithDropWhenFull(drop bool) *Builder {
	b.config.DropWhenFull = drop
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.config.Logger = l
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	return New(b.config)
}

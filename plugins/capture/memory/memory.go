// Package memory implements a capture source that replays frames held in
// memory. It backs tests and embedding programs that already have frames.
package memory

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"firestige.xyz/siemtap/internal/core"
	"firestige.xyz/siemtap/pkg/plugin"
)

const pluginName = "memory"

// Config represents memory source options.
type Config struct {
	Frames []string `mapstructure:"frames"` // hex-encoded frames
}

// Capturer replays a fixed list of frames on every Open.
type Capturer struct {
	name   string
	frames []plugin.Frame
}

// NewCapturer creates a memory capturer replaying frames.
func NewCapturer(frames ...plugin.Frame) *Capturer {
	return &Capturer{name: pluginName, frames: frames}
}

// Name returns the plugin name.
func (c *Capturer) Name() string {
	return c.name
}

// Init appends the hex-encoded frames from the "frames" option.
func (c *Capturer) Init(cfg map[string]any) error {
	var opts Config
	if err := plugin.DecodeOptions(cfg, &opts); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	now := time.Now()
	for i, s := range opts.Frames {
		data, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
		if err != nil {
			return fmt.Errorf("memory: frames[%d]: %w", i, err)
		}
		c.frames = append(c.frames, NewFrame(now, data))
	}
	return nil
}

// Start is a no-op.
func (c *Capturer) Start(ctx context.Context) error {
	return nil
}

// Stop is a no-op.
func (c *Capturer) Stop(ctx context.Context) error {
	return nil
}

// Interfaces returns no interfaces.
func (c *Capturer) Interfaces() ([]plugin.Interface, error) {
	return nil, nil
}

// Open returns a handle replaying the configured frames. Options are ignored.
func (c *Capturer) Open(opts plugin.CaptureOptions) (plugin.Handle, error) {
	h := NewHandle()
	for _, f := range c.frames {
		h.Push(f)
	}
	h.End()
	return h, nil
}

// NewFrame builds a frame for data captured in full at ts.
func NewFrame(ts time.Time, data []byte) plugin.Frame {
	return plugin.Frame{
		Meta: core.NewCaptureMetadata(ts, len(data), len(data)),
		Data: data,
	}
}

type item struct {
	frame plugin.Frame
	err   error
}

// Handle is a queue of frames and errors returned in order by ReadFrame.
// Once the queue is drained ReadFrame blocks for more items until End or
// Close is called.
type Handle struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []item
	ended  bool
	closed bool
	stats  plugin.CaptureStats
}

// NewHandle creates an empty handle.
func NewHandle() *Handle {
	h := &Handle{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Push queues a frame. The frame data is copied.
func (h *Handle) Push(f plugin.Frame) {
	f.Data = append([]byte(nil), f.Data...)
	h.enqueue(item{frame: f})
}

// PushError queues an error to be returned by ReadFrame.
func (h *Handle) PushError(err error) {
	h.enqueue(item{err: err})
}

// End marks the end of the stream: ReadFrame returns io.EOF once the queue
// is drained.
func (h *Handle) End() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended = true
	h.cond.Broadcast()
}

func (h *Handle) enqueue(it item) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, it)
	h.cond.Broadcast()
}

// ReadFrame returns the next queued item.
func (h *Handle) ReadFrame() (plugin.Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for len(h.items) == 0 && !h.ended && !h.closed {
		h.cond.Wait()
	}
	if h.closed {
		return plugin.Frame{}, core.ErrCaptureClosed
	}
	if len(h.items) == 0 {
		return plugin.Frame{}, io.EOF
	}

	it := h.items[0]
	h.items = h.items[1:]
	if it.err != nil {
		return plugin.Frame{}, it.err
	}
	h.stats.PacketsReceived++
	return it.frame, nil
}

// Stats returns the number of frames read.
func (h *Handle) Stats() plugin.CaptureStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Close wakes any blocked reader; later reads return core.ErrCaptureClosed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.cond.Broadcast()
	return nil
}

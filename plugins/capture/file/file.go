// Package file implements offline replay of pcap and pcapng capture files.
package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/siemtap/internal/core"
	"firestige.xyz/siemtap/internal/log"
	"firestige.xyz/siemtap/internal/utils"
	"firestige.xyz/siemtap/pkg/plugin"
)

const (
	pluginName     = "file"
	defaultSnapLen = 65535
)

// pcapng files start with a section header block.
var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// packetReader is implemented by pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Capturer replays capture files.
type Capturer struct {
	name string
}

// NewCapturer creates a new file capturer instance.
func NewCapturer() plugin.Capturer {
	return &Capturer{name: pluginName}
}

// Name returns the plugin name.
func (c *Capturer) Name() string {
	return c.name
}

// Init initializes the capturer. The file source has no options.
func (c *Capturer) Init(cfg map[string]any) error {
	var none struct{}
	if err := plugin.DecodeOptions(cfg, &none); err != nil {
		return fmt.Errorf("file: %w", err)
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

// Interfaces returns no interfaces: a file source has none.
func (c *Capturer) Interfaces() ([]plugin.Interface, error) {
	return nil, nil
}

// Open opens opts.File. The format (pcap or pcapng) is detected from the
// file header. A non-empty opts.Filter is evaluated in user space on every
// frame.
func (c *Capturer) Open(opts plugin.CaptureOptions) (plugin.Handle, error) {
	if opts.File == "" {
		return nil, fmt.Errorf("file: path is required")
	}

	f, err := os.Open(opts.File)
	if err != nil {
		return nil, fmt.Errorf("file: failed to open %s: %w", opts.File, err)
	}

	h, err := NewHandle(f, opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("file: %s: %w", opts.File, err)
	}
	h.closer = f

	log.GetLogger().WithFields(map[string]interface{}{
		"file":      opts.File,
		"link_type": h.reader.LinkType().String(),
		"filter":    opts.Filter,
	}).Info("capture file opened")

	return h, nil
}

// Handle reads frames from a capture file.
type Handle struct {
	mu     sync.Mutex
	reader packetReader
	filter *utils.BpfFilter
	closer io.Closer
	closed bool

	packetsReceived atomic.Uint64
	packetsFiltered atomic.Uint64
}

// NewHandle reads a pcap or pcapng stream from r.
func NewHandle(r io.Reader, opts plugin.CaptureOptions) (*Handle, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}

	var reader packetReader
	if bytes.Equal(magic, pcapngMagic) {
		reader, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		reader, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("not a pcap or pcapng file (magic 0x%08x): %w", binary.BigEndian.Uint32(magic), err)
	}

	if lt := reader.LinkType(); lt != layers.LinkTypeEthernet {
		log.GetLogger().WithField("link_type", lt.String()).Warn("capture file is not Ethernet, frames will not decode past the link layer")
	}

	h := &Handle{reader: reader}
	if opts.Filter != "" {
		snapLen := opts.SnapLen
		if snapLen <= 0 {
			snapLen = defaultSnapLen
		}
		if h.filter, err = utils.NewBpfFilter(opts.Filter, snapLen); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// ReadFrame returns the next frame passing the filter, or io.EOF at the end
// of the file.
func (h *Handle) ReadFrame() (plugin.Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		if h.closed {
			return plugin.Frame{}, core.ErrCaptureClosed
		}

		data, ci, err := h.reader.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return plugin.Frame{}, io.EOF
			}
			return plugin.Frame{}, fmt.Errorf("file: read failed: %w", err)
		}
		h.packetsReceived.Add(1)

		if h.filter != nil && !h.filter.Match(data) {
			h.packetsFiltered.Add(1)
			continue
		}

		return plugin.Frame{
			Meta: core.NewCaptureMetadata(ci.Timestamp, len(data), ci.Length),
			Data: data,
		}, nil
	}
}

// Stats returns replay statistics. Frames rejected by the filter are
// counted as dropped.
func (h *Handle) Stats() plugin.CaptureStats {
	return plugin.CaptureStats{
		PacketsReceived: h.packetsReceived.Load(),
		PacketsDropped:  h.packetsFiltered.Load(),
	}
}

// Close closes the underlying file.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if h.closer != nil {
		return h.closer.Close()
	}
	return nil
}

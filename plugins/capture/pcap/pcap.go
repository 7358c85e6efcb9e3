// Package pcap implements the libpcap/Npcap live capture plugin.
package pcap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/gopacket/pcap"

	"firestige.xyz/siemtap/internal/core"
	"firestige.xyz/siemtap/internal/log"
	"firestige.xyz/siemtap/pkg/plugin"
)

const (
	pluginName = "pcap"

	defaultSnapLen = 65535
	// pcapIfLoopback is PCAP_IF_LOOPBACK in pcap_if_t.flags.
	pcapIfLoopback = 0x00000001
)

// Overridable for tests.
var findAllDevs = pcap.FindAllDevs

// Config represents pcap-specific options.
type Config struct {
	BufferSize int `mapstructure:"buffer_size"` // kernel buffer in bytes, 0 = libpcap default
}

// Capturer opens live captures through libpcap.
type Capturer struct {
	name   string
	config Config
}

// NewCapturer creates a new pcap capturer instance.
func NewCapturer() plugin.Capturer {
	return &Capturer{name: pluginName}
}

// Name returns the plugin name.
func (c *Capturer) Name() string {
	return c.name
}

// Init initializes the capturer with configuration.
func (c *Capturer) Init(cfg map[string]any) error {
	if err := plugin.DecodeOptions(cfg, &c.config); err != nil {
		return fmt.Errorf("pcap: %w", err)
	}
	return nil
}

// Start is a no-op; handles are opened by Open.
func (c *Capturer) Start(ctx context.Context) error {
	return nil
}

// Stop is a no-op; handles are closed by their owner.
func (c *Capturer) Stop(ctx context.Context) error {
	return nil
}

// Interfaces lists the devices libpcap can open.
func (c *Capturer) Interfaces() ([]plugin.Interface, error) {
	devs, err := findAllDevs()
	if err != nil {
		return nil, fmt.Errorf("pcap: failed to list interfaces: %w", err)
	}

	ifaces := make([]plugin.Interface, 0, len(devs))
	for _, dev := range devs {
		iface := plugin.Interface{
			Name:        dev.Name,
			Description: dev.Description,
			Loopback:    dev.Flags&pcapIfLoopback != 0,
		}
		for _, addr := range dev.Addresses {
			if addr.IP != nil {
				iface.Addresses = append(iface.Addresses, addr.IP.String())
			}
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, nil
}

// Open opens a live capture on opts.Interface.
func (c *Capturer) Open(opts plugin.CaptureOptions) (plugin.Handle, error) {
	if opts.Interface == "" {
		return nil, fmt.Errorf("pcap: interface is required")
	}
	snapLen := opts.SnapLen
	if snapLen <= 0 {
		snapLen = defaultSnapLen
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = pcap.BlockForever
	}

	inactive, err := pcap.NewInactiveHandle(opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("pcap: failed to create handle for %s: %w", opts.Interface, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(snapLen); err != nil {
		return nil, fmt.Errorf("pcap: failed to set snaplen: %w", err)
	}
	if err := inactive.SetPromisc(opts.Mode.Promiscuous()); err != nil {
		return nil, fmt.Errorf("pcap: failed to set promiscuous mode: %w", err)
	}
	if err := inactive.SetTimeout(timeout); err != nil {
		return nil, fmt.Errorf("pcap: failed to set timeout: %w", err)
	}
	if opts.Mode == plugin.ModeRealtime {
		if err := inactive.SetImmediateMode(true); err != nil {
			return nil, fmt.Errorf("pcap: failed to set immediate mode: %w", err)
		}
	}
	if c.config.BufferSize > 0 {
		if err := inactive.SetBufferSize(c.config.BufferSize); err != nil {
			return nil, fmt.Errorf("pcap: failed to set buffer size: %w", err)
		}
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("pcap: failed to open %s: %w", opts.Interface, err)
	}

	if opts.Filter != "" {
		if err := handle.SetBPFFilter(opts.Filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("pcap: failed to apply BPF filter %q: %w", opts.Filter, err)
		}
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"interface": opts.Interface,
		"mode":      string(opts.Mode),
		"snap_len":  snapLen,
		"filter":    opts.Filter,
	}).Info("pcap capture opened")

	return &Handle{handle: handle}, nil
}

// Handle is an open libpcap capture.
type Handle struct {
	handle *pcap.Handle
	closed atomic.Bool

	packetsReceived atomic.Uint64
}

// ReadFrame reads the next frame.
func (h *Handle) ReadFrame() (plugin.Frame, error) {
	if h.closed.Load() {
		return plugin.Frame{}, core.ErrCaptureClosed
	}

	data, ci, err := h.handle.ReadPacketData()
	switch {
	case err == nil:
	case errors.Is(err, pcap.NextErrorTimeoutExpired):
		return plugin.Frame{}, core.ErrCaptureTimeout
	case errors.Is(err, io.EOF), errors.Is(err, pcap.NextErrorNoMorePackets):
		return plugin.Frame{}, io.EOF
	default:
		if h.closed.Load() {
			return plugin.Frame{}, core.ErrCaptureClosed
		}
		return plugin.Frame{}, fmt.Errorf("pcap: read failed: %w", err)
	}

	h.packetsReceived.Add(1)
	// ReadPacketData already returns a copy owned by the caller
	return plugin.Frame{
		Meta: core.NewCaptureMetadata(ci.Timestamp, ci.CaptureLength, ci.Length),
		Data: data,
	}, nil
}

// Stats returns capture statistics. Drop counters come from libpcap.
func (h *Handle) Stats() plugin.CaptureStats {
	stats := plugin.CaptureStats{PacketsReceived: h.packetsReceived.Load()}
	if h.closed.Load() {
		return stats
	}
	if ps, err := h.handle.Stats(); err == nil {
		stats.PacketsDropped = uint64(ps.PacketsDropped)
		stats.PacketsIfDropped = uint64(ps.PacketsIfDropped)
	}
	return stats
}

// Close closes the capture. It is safe to call more than once.
func (h *Handle) Close() error {
	if h.closed.CompareAndSwap(false, true) {
		h.handle.Close()
	}
	return nil
}

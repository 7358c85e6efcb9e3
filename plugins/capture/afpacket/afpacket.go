//go:build linux

// Package afpacket implements the AF_PACKET TPACKET_V3 capture plugin.
package afpacket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/afpacket"
	"golang.org/x/sys/unix"

	"firestige.xyz/siemtap/internal/core"
	"firestige.xyz/siemtap/internal/log"
	"firestige.xyz/siemtap/internal/utils"
	"firestige.xyz/siemtap/pkg/plugin"
)

const (
	pluginName = "afpacket"

	// Default configuration values
	defaultSnapLen    = 65535
	defaultBufferMB   = 8
	defaultPollWindow = 100 * time.Millisecond
)

// Config represents afpacket-specific options.
type Config struct {
	BufferMB   int    `mapstructure:"buffer_mb"`   // ring size in MiB, default 8
	FanoutID   int    `mapstructure:"fanout_id"`   // 0 = no fanout group
	FanoutType string `mapstructure:"fanout_type"` // hash
}

// Capturer opens AF_PACKET rings.
type Capturer struct {
	name   string
	config Config
}

// NewCapturer creates a new AF_PACKET capturer instance.
func NewCapturer() plugin.Capturer {
	return &Capturer{
		name:   pluginName,
		config: Config{BufferMB: defaultBufferMB},
	}
}

// Name returns the plugin name.
func (c *Capturer) Name() string {
	return c.name
}

// Init initializes the capturer with configuration.
func (c *Capturer) Init(cfg map[string]any) error {
	if err := plugin.DecodeOptions(cfg, &c.config); err != nil {
		return fmt.Errorf("afpacket: %w", err)
	}
	if c.config.BufferMB <= 0 {
		c.config.BufferMB = defaultBufferMB
	}
	if c.config.FanoutID != 0 {
		if _, err := parseFanoutType(c.config.FanoutType); err != nil {
			return fmt.Errorf("afpacket: %w", err)
		}
	}
	return nil
}

// Start is a no-op; rings are created by Open.
func (c *Capturer) Start(ctx context.Context) error {
	return nil
}

// Stop is a no-op; handles are closed by their owner.
func (c *Capturer) Stop(ctx context.Context) error {
	return nil
}

// Interfaces lists the host's network interfaces.
func (c *Capturer) Interfaces() ([]plugin.Interface, error) {
	nifs, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("afpacket: failed to list interfaces: %w", err)
	}

	ifaces := make([]plugin.Interface, 0, len(nifs))
	for _, nif := range nifs {
		iface := plugin.Interface{
			Name:        nif.Name,
			Description: nif.Flags.String(),
			Loopback:    nif.Flags&net.FlagLoopback != 0,
		}
		if addrs, err := nif.Addrs(); err == nil {
			for _, addr := range addrs {
				if ipNet, ok := addr.(*net.IPNet); ok {
					iface.Addresses = append(iface.Addresses, ipNet.IP.String())
				}
			}
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, nil
}

// Open creates a TPACKET_V3 ring on opts.Interface.
func (c *Capturer) Open(opts plugin.CaptureOptions) (plugin.Handle, error) {
	if opts.Interface == "" {
		return nil, fmt.Errorf("afpacket: interface is required")
	}
	snapLen := opts.SnapLen
	if snapLen <= 0 {
		snapLen = defaultSnapLen
	}
	pollTimeout := opts.Timeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPollWindow
	}

	frameSize, blockSize, numBlocks, err := computeSize(c.config.BufferMB, snapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("afpacket: %w", err)
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(opts.Interface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(pollTimeout),
		afpacket.OptTPacketVersion(afpacket.TPacketVersion3),
	)
	if err != nil {
		return nil, fmt.Errorf("afpacket: failed to create TPacket handle on %s: %w", opts.Interface, err)
	}

	h := &Handle{tp: tp, iface: opts.Interface}

	if c.config.FanoutID != 0 {
		fanoutType, _ := parseFanoutType(c.config.FanoutType)
		if err := tp.SetFanout(fanoutType, uint16(c.config.FanoutID)); err != nil {
			tp.Close()
			return nil, fmt.Errorf("afpacket: failed to set fanout: %w", err)
		}
	}

	if opts.Filter != "" {
		rawInsns, err := utils.CompileBpf(opts.Filter, snapLen)
		if err != nil {
			tp.Close()
			return nil, fmt.Errorf("afpacket: %w", err)
		}
		if err := tp.SetBPF(rawInsns); err != nil {
			tp.Close()
			return nil, fmt.Errorf("afpacket: failed to set BPF: %w", err)
		}
	}

	if opts.Mode.Promiscuous() {
		if err := setPromisc(opts.Interface, true); err != nil {
			tp.Close()
			return nil, fmt.Errorf("afpacket: failed to enable promiscuous mode: %w", err)
		}
		h.promisc = true
	}

	if err := tp.InitSocketStats(); err != nil {
		log.GetLogger().WithError(err).Warn("afpacket: failed to init socket stats")
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"interface":  opts.Interface,
		"mode":       string(opts.Mode),
		"frame_size": frameSize,
		"block_size": blockSize,
		"num_blocks": numBlocks,
		"filter":     opts.Filter,
	}).Info("afpacket capture opened")

	return h, nil
}

// Handle is an open TPACKET_V3 ring.
type Handle struct {
	mu      sync.Mutex
	tp      *afpacket.TPacket
	iface   string
	promisc bool
	closed  bool

	packetsReceived atomic.Uint64
	packetsDropped  atomic.Uint64
}

// ReadFrame reads the next frame. The ring slot is copied so the frame
// outlives the next read.
//
// The mutex keeps Close from unmapping the ring while a read holds a
// zero-copy slice into it.
func (h *Handle) ReadFrame() (plugin.Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return plugin.Frame{}, core.ErrCaptureClosed
	}

	data, ci, err := h.tp.ZeroCopyReadPacketData()
	if err != nil {
		if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, afpacket.ErrPoll) || errors.Is(err, unix.EINTR) {
			return plugin.Frame{}, core.ErrCaptureTimeout
		}
		return plugin.Frame{}, fmt.Errorf("afpacket: read failed: %w", err)
	}

	h.packetsReceived.Add(1)
	if _, statsV3, statsErr := h.tp.SocketStats(); statsErr == nil {
		h.packetsDropped.Store(uint64(statsV3.Drops()))
	}

	return plugin.Frame{
		Meta: core.NewCaptureMetadata(ci.Timestamp, ci.CaptureLength, ci.Length),
		Data: append([]byte(nil), data...),
	}, nil
}

// Stats returns capture statistics.
func (h *Handle) Stats() plugin.CaptureStats {
	return plugin.CaptureStats{
		PacketsReceived: h.packetsReceived.Load(),
		PacketsDropped:  h.packetsDropped.Load(),
	}
}

// Close releases the ring and restores the interface flags.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.tp.Close()

	if h.promisc {
		if err := setPromisc(h.iface, false); err != nil {
			return fmt.Errorf("afpacket: failed to restore interface flags: %w", err)
		}
	}
	return nil
}

// computeSize sizes the ring: frames are whole pages large enough for
// snapLen, blocks hold 128 frames, and enough blocks to fill targetSizeMB.
func computeSize(targetSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if snapLen < pageSize {
		frameSize = pageSize / (pageSize / snapLen)
	} else {
		frameSize = (snapLen/pageSize + 1) * pageSize
	}

	blockSize = frameSize * 128
	numBlocks = (targetSizeMB * 1024 * 1024) / blockSize
	if numBlocks == 0 {
		return 0, 0, 0, fmt.Errorf("buffer size %d MiB too small for snap_len %d", targetSizeMB, snapLen)
	}
	return frameSize, blockSize, numBlocks, nil
}

// setPromisc sets or clears IFF_PROMISC on iface.
func setPromisc(iface string, on bool) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq(iface)
	if err != nil {
		return err
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return err
	}

	flags := ifr.Uint16()
	if on {
		flags |= unix.IFF_PROMISC
	} else {
		flags &^= unix.IFF_PROMISC
	}
	ifr.SetUint16(flags)
	return unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr)
}

// parseFanoutType converts fanout type string to afpacket constant.
//
// gopacket/afpacket v1.1.19 only exports FanoutHash.
func parseFanoutType(ft string) (afpacket.FanoutType, error) {
	switch ft {
	case "hash", "":
		return afpacket.FanoutHash, nil
	default:
		return 0, fmt.Errorf("unknown fanout type: %q (only 'hash' is supported)", ft)
	}
}

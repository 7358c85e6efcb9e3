package plugin

import (
	"fmt"
	"strings"
	"time"

	"firestige.xyz/siemtap/internal/core"
)

// Mode is the capture mode of a live interface.
type Mode string

const (
	// ModeRealtime delivers frames as soon as they arrive (no kernel
	// buffering delay) in promiscuous mode.
	ModeRealtime       Mode = "realtime"
	ModePromiscuous    Mode = "promiscuous"
	ModeNonPromiscuous Mode = "non_promiscuous"
)

// ParseMode parses a capture mode name. The empty string means
// ModeNonPromiscuous.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeRealtime, ModePromiscuous, ModeNonPromiscuous:
		return m, nil
	case "":
		return ModeNonPromiscuous, nil
	}
	return "", fmt.Errorf("unknown capture mode %q", s)
}

// Promiscuous reports whether the mode opens the interface promiscuously.
func (m Mode) Promiscuous() bool {
	return m == ModeRealtime || m == ModePromiscuous
}

// Interface describes a capture interface.
type Interface struct {
	Name        string
	Description string
	Addresses   []string
	Loopback    bool
}

// CaptureOptions configures a capture handle.
type CaptureOptions struct {
	Interface string        // live interface name
	File      string        // capture file path, for offline sources
	Mode      Mode          // live capture mode
	SnapLen   int           // maximum bytes captured per frame
	Timeout   time.Duration // read timeout
	Filter    string        // BPF expression, empty for none
}

// Frame is a captured frame. Data is owned by the frame and stays valid after
// the next ReadFrame.
type Frame struct {
	Meta core.CaptureMetadata
	Data []byte
}

// CaptureStats represents capture statistics.
type CaptureStats struct {
	PacketsReceived  uint64
	PacketsDropped   uint64
	PacketsIfDropped uint64
}

// Capturer is a capture source plugin.
type Capturer interface {
	Plugin
	// Interfaces lists the interfaces this source can capture on.
	Interfaces() ([]Interface, error)
	// Open opens a capture handle.
	Open(opts CaptureOptions) (Handle, error)
}

// Handle is an open capture.
//
// ReadFrame blocks until a frame is available. It returns io.EOF at the end
// of an offline capture, core.ErrCaptureTimeout when the read timeout expires
// without a frame and core.ErrCaptureClosed after Close.
type Handle interface {
	ReadFrame() (Frame, error)
	Stats() CaptureStats
	Close() error
}

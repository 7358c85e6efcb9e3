// Package forwarder implements the SIEM forwarder reporter: a TCP client that
// sends one newline-terminated line per record to a collector.
//
// The collector may be down when the reporter starts or go away later.
// Records reported while disconnected are dropped with core.ErrNotConnected;
// a new connection is attempted on Report once ReconnectDelay has passed
// since the last attempt.
package forwarder

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/siemtap/internal/core"
	"firestige.xyz/siemtap/internal/log"
	"firestige.xyz/siemtap/pkg/plugin"
)

const (
	defaultAddress        = "127.0.0.1:8089"
	defaultDialTimeout    = 3 * time.Second
	defaultWriteTimeout   = 3 * time.Second
	defaultReconnectDelay = 5 * time.Second
)

// Config represents forwarder configuration.
type Config struct {
	Address        string        `mapstructure:"address"`         // host:port, default 127.0.0.1:8089
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`    // default 3s
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`   // default 3s
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"` // default 5s
}

// Reporter forwards records over TCP.
type Reporter struct {
	name   string
	config Config

	dial func(ctx context.Context, network, address string) (net.Conn, error)
	now  func() time.Time

	mu          sync.Mutex
	conn        net.Conn
	lastAttempt time.Time

	sentCount    atomic.Uint64
	droppedCount atomic.Uint64
}

// NewReporter creates a forwarder with default configuration.
func NewReporter() plugin.Reporter {
	return newReporter()
}

func newReporter() *Reporter {
	d := &net.Dialer{}
	return &Reporter{
		name: "forwarder",
		config: Config{
			Address:        defaultAddress,
			DialTimeout:    defaultDialTimeout,
			WriteTimeout:   defaultWriteTimeout,
			ReconnectDelay: defaultReconnectDelay,
		},
		dial: d.DialContext,
		now:  time.Now,
	}
}

// Name returns the plugin name.
func (r *Reporter) Name() string {
	return r.name
}

// Init initializes the reporter with configuration.
func (r *Reporter) Init(config map[string]any) error {
	cfg := r.config
	if err := plugin.DecodeOptions(config, &cfg); err != nil {
		return fmt.Errorf("forwarder: %w", err)
	}

	if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
		return fmt.Errorf("forwarder: invalid address %q: %w", cfg.Address, err)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ReconnectDelay < 0 {
		return fmt.Errorf("forwarder: reconnect_delay must not be negative")
	}

	r.config = cfg
	return nil
}

// Start dials the collector. A failed dial is logged, not returned.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.connectLocked(ctx); err != nil {
		log.GetLogger().WithError(err).
			WithField("address", r.config.Address).
			Warn("forwarder: collector unreachable, will retry")
	}
	return nil
}

// Stop closes the connection.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disconnectLocked()

	log.GetLogger().WithFields(map[string]interface{}{
		"address":       r.config.Address,
		"total_sent":    r.sentCount.Load(),
		"total_dropped": r.droppedCount.Load(),
	}).Info("forwarder reporter stopped")
	return nil
}

// Report sends one record. A failed send drops the connection.
func (r *Reporter) Report(ctx context.Context, rec *core.OutputRecord) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil && r.now().Sub(r.lastAttempt) >= r.config.ReconnectDelay {
		if err := r.connectLocked(ctx); err != nil {
			log.GetLogger().WithError(err).Debug("forwarder: reconnect failed")
		}
	}
	if r.conn == nil {
		r.droppedCount.Add(1)
		return core.ErrNotConnected
	}

	if err := r.conn.SetWriteDeadline(r.now().Add(r.config.WriteTimeout)); err != nil {
		log.GetLogger().WithError(err).Debug("forwarder: set write deadline failed")
	}
	if _, err := r.conn.Write(rec.Bytes()); err != nil {
		r.disconnectLocked()
		r.lastAttempt = r.now()
		r.droppedCount.Add(1)
		log.GetLogger().WithError(err).Warn("forwarder: send failed, disconnected")
		return fmt.Errorf("forwarder: send failed: %w", err)
	}

	r.sentCount.Add(1)
	return nil
}

// Flush is a no-op; every record is written immediately.
func (r *Reporter) Flush(ctx context.Context) error {
	return nil
}

// Connected reports whether a connection is open.
func (r *Reporter) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

// Sent returns the number of records delivered to the socket.
func (r *Reporter) Sent() uint64 {
	return r.sentCount.Load()
}

// Dropped returns the number of records that could not be sent.
func (r *Reporter) Dropped() uint64 {
	return r.droppedCount.Load()
}

func (r *Reporter) connectLocked(ctx context.Context) error {
	r.lastAttempt = r.now()

	dialCtx, cancel := context.WithTimeout(ctx, r.config.DialTimeout)
	defer cancel()

	conn, err := r.dial(dialCtx, "tcp", r.config.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", r.config.Address, err)
	}
	r.conn = conn

	log.GetLogger().WithField("address", r.config.Address).Info("forwarder connected")
	return nil
}

func (r *Reporter) disconnectLocked() {
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
}

// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/siemtap/internal/core"
	"firestige.xyz/siemtap/internal/render"
	"firestige.xyz/siemtap/pkg/plugin"
)

// rootKey is the YAML root wrapper. Environment variables map onto it through
// the key replacer: "siemtap.capture.interface" → SIEMTAP_CAPTURE_INTERFACE.
const rootKey = "siemtap"

// Capture sources.
const (
	SourcePcap     = "pcap"
	SourceAFPacket = "afpacket"
	SourceFile     = "file"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `siemtap:` root key in YAML.
type GlobalConfig struct {
	Node      NodeConfig       `mapstructure:"node" yaml:"node"`
	Capture   CaptureConfig    `mapstructure:"capture" yaml:"capture"`
	Output    OutputConfig     `mapstructure:"output" yaml:"output"`
	Reporters []ReporterConfig `mapstructure:"reporters" yaml:"reporters"`
	Metrics   MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Log       LogConfig        `mapstructure:"log" yaml:"log"`
}

// ─── Node Identity ───

// NodeConfig contains node identification settings.
type NodeConfig struct {
	Hostname string `mapstructure:"hostname" yaml:"hostname"` // Empty = os.Hostname()
}

// ─── Capture ───

// CaptureConfig selects and configures the capture source.
type CaptureConfig struct {
	Source     string         `mapstructure:"source" yaml:"source"`           // pcap | afpacket | file
	Interface  string         `mapstructure:"interface" yaml:"interface"`     // live sources
	File       string         `mapstructure:"file" yaml:"file"`               // file source
	Mode       string         `mapstructure:"mode" yaml:"mode"`               // realtime | promiscuous | non_promiscuous
	SnapLen    int            `mapstructure:"snap_len" yaml:"snap_len"`       // bytes per frame
	Timeout    time.Duration  `mapstructure:"timeout" yaml:"timeout"`         // read timeout
	Filter     string         `mapstructure:"filter" yaml:"filter"`           // BPF expression
	MaxPackets int            `mapstructure:"max_packets" yaml:"max_packets"` // 0 = unlimited
	BufferSize int            `mapstructure:"buffer_size" yaml:"buffer_size"` // frames queued between capture and decode
	Options    map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// CaptureOptions converts the section to plugin capture options.
func (c CaptureConfig) CaptureOptions() plugin.CaptureOptions {
	mode, _ := plugin.ParseMode(c.Mode)
	return plugin.CaptureOptions{
		Interface: c.Interface,
		File:      c.File,
		Mode:      mode,
		SnapLen:   c.SnapLen,
		Timeout:   c.Timeout,
		Filter:    c.Filter,
	}
}

// ─── Output ───

// OutputConfig selects the rendering handed to reporters.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"` // json | text | hex
}

// ─── Reporters ───

// ReporterConfig configures one reporter plugin instance.
type ReporterConfig struct {
	Type    string         `mapstructure:"type" yaml:"type"`
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// ─── Metrics ───

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Logging ───

// LogConfig configures the global logger.
type LogConfig struct {
	Level      string           `mapstructure:"level" yaml:"level"`             // trace / debug / info / warn / error
	Pattern    string           `mapstructure:"pattern" yaml:"pattern"`         // %time %level %field %msg %caller %func %goroutine
	TimeFormat string           `mapstructure:"time_format" yaml:"time_format"` // Go time layout
	File       FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// configRoot is the YAML root wrapper.
type configRoot struct {
	Siemtap GlobalConfig `mapstructure:"siemtap" yaml:"siemtap"`
}

// Load loads configuration from file. An empty path loads defaults and
// environment overrides only.
// The YAML file uses `siemtap:` as root key; env vars use the SIEMTAP_ prefix
// (e.g., SIEMTAP_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `siemtap.` key prefix maps to `SIEMTAP_` in env vars via the key replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Unmarshal into wrapper → extract inner GlobalConfig
	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Siemtap

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() (*GlobalConfig, error) {
	return Load("")
}

// setDefaults sets default values for configuration.
// All keys use the "siemtap." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Node defaults
	v.SetDefault("siemtap.node.hostname", "")

	// Capture defaults
	v.SetDefault("siemtap.capture.source", SourcePcap)
	v.SetDefault("siemtap.capture.interface", "")
	v.SetDefault("siemtap.capture.file", "")
	v.SetDefault("siemtap.capture.mode", string(plugin.ModeNonPromiscuous))
	v.SetDefault("siemtap.capture.snap_len", 65535)
	v.SetDefault("siemtap.capture.timeout", "1s")
	v.SetDefault("siemtap.capture.filter", "")
	v.SetDefault("siemtap.capture.max_packets", 0)
	v.SetDefault("siemtap.capture.buffer_size", 1024)

	// Output defaults
	v.SetDefault("siemtap.output.format", string(render.FormatJSON))

	// Reporter defaults: forward to the local SIEM collector
	v.SetDefault("siemtap.reporters", []map[string]any{
		{"type": "forwarder", "options": map[string]any{"address": "127.0.0.1:8089"}},
	})

	// Metrics defaults
	v.SetDefault("siemtap.metrics.enabled", false)
	v.SetDefault("siemtap.metrics.listen", ":9091")
	v.SetDefault("siemtap.metrics.path", "/metrics")

	// Log defaults
	v.SetDefault("siemtap.log.level", "info")
	v.SetDefault("siemtap.log.pattern", "%time [%level] %field %msg")
	v.SetDefault("siemtap.log.time_format", "2006-01-02 15:04:05.000")
	v.SetDefault("siemtap.log.file.enabled", false)
	v.SetDefault("siemtap.log.file.path", "/var/log/siemtap/siemtap.log")
	v.SetDefault("siemtap.log.file.rotation.max_size_mb", 100)
	v.SetDefault("siemtap.log.file.rotation.max_age_days", 30)
	v.SetDefault("siemtap.log.file.rotation.max_backups", 5)
	v.SetDefault("siemtap.log.file.rotation.compress", true)
}

// ValidateAndApplyDefaults validates configuration and applies runtime
// defaults. Every validation error wraps core.ErrConfigInvalid.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return invalid("log level %q (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return invalid("log.file.path is required when log.file.enabled=true")
	}

	// ── Node hostname auto-detect ──
	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}

	// ── Capture validation ──
	switch cfg.Capture.Source {
	case SourcePcap, SourceAFPacket:
	case SourceFile:
		if cfg.Capture.File == "" {
			return invalid("capture.file is required when capture.source=file")
		}
	default:
		return invalid("capture.source %q (must be pcap/afpacket/file)", cfg.Capture.Source)
	}
	mode, err := plugin.ParseMode(cfg.Capture.Mode)
	if err != nil {
		return invalid("capture.mode: %v", err)
	}
	cfg.Capture.Mode = string(mode)
	if cfg.Capture.SnapLen <= 0 || cfg.Capture.SnapLen > 262144 {
		return invalid("capture.snap_len %d (must be 1..262144)", cfg.Capture.SnapLen)
	}
	if cfg.Capture.Timeout <= 0 {
		cfg.Capture.Timeout = time.Second
	}
	if cfg.Capture.MaxPackets < 0 {
		return invalid("capture.max_packets %d must not be negative", cfg.Capture.MaxPackets)
	}
	if cfg.Capture.BufferSize <= 0 {
		cfg.Capture.BufferSize = 1024
	}

	// ── Output validation ──
	format, err := render.ParseFormat(cfg.Output.Format)
	if err != nil {
		return invalid("output.format: %v", err)
	}
	cfg.Output.Format = string(format)

	// ── Reporter validation ──
	for i, r := range cfg.Reporters {
		if r.Type == "" {
			return invalid("reporters[%d].type is required", i)
		}
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return invalid("metrics.listen is required when metrics.enabled=true")
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core.ErrConfigInvalid}, args...)...)
}

// YAML renders the effective configuration, root wrapper included.
func (cfg *GlobalConfig) YAML() ([]byte, error) {
	return yaml.Marshal(configRoot{Siemtap: *cfg})
}

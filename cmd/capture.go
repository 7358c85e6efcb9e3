package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/siemtap/internal/config"
	"firestige.xyz/siemtap/internal/log"
	"firestige.xyz/siemtap/internal/metrics"
	"firestige.xyz/siemtap/internal/privilege"
)

// captureOverrides are command-line values that replace config settings.
// Empty strings and a negative maxPackets leave the config untouched.
type captureOverrides struct {
	iface      string
	source     string
	filter     string
	format     string
	server     string
	maxPackets int
	stdout     bool
}

var captureFlags = captureOverrides{maxPackets: -1}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture, decode and report traffic",
	Long: `Capture frames from the configured source and hand one record per frame
to the configured reporters until interrupted (SIGINT/SIGTERM), the source
ends or --max-packets records were emitted.

Examples:
  siemtap capture -i eth0                          # forward JSON records to 127.0.0.1:8089
  siemtap capture -i eth0 --stdout --format text   # also print text blocks
  siemtap capture -c /etc/siemtap/config.yml --filter "tcp port 443"
  siemtap capture -i eth0 --server 10.0.0.5:8089 -n 1000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("max-packets") {
			captureFlags.maxPackets = -1
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := captureFlags.apply(cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runCapture(ctx, cfg, privilege.System{}, os.Stdout)
	},
}

func init() {
	f := captureCmd.Flags()
	f.StringVarP(&captureFlags.iface, "interface", "i", "", "network interface to capture on")
	f.StringVar(&captureFlags.source, "source", "", "capture source: pcap, afpacket or file")
	f.StringVarP(&captureFlags.filter, "filter", "f", "", "BPF filter expression")
	f.StringVar(&captureFlags.format, "format", "", "output format: json, text or hex")
	f.StringVar(&captureFlags.server, "server", "", "SIEM collector address (host:port) for the forwarder")
	f.IntVarP(&captureFlags.maxPackets, "max-packets", "n", 0, "stop after this many records (0 = unlimited)")
	f.BoolVar(&captureFlags.stdout, "stdout", false, "also print records to stdout")
}

// apply writes the overrides into cfg and validates the result.
func (o captureOverrides) apply(cfg *config.GlobalConfig) error {
	if o.iface != "" {
		cfg.Capture.Interface = o.iface
	}
	if o.source != "" {
		cfg.Capture.Source = o.source
	}
	if o.filter != "" {
		cfg.Capture.Filter = o.filter
	}
	if o.format != "" {
		cfg.Output.Format = o.format
	}
	if o.maxPackets >= 0 {
		cfg.Capture.MaxPackets = o.maxPackets
	}
	if o.server != "" {
		setForwarderAddress(cfg, o.server)
	}
	if o.stdout {
		cfg.Reporters = append(cfg.Reporters, config.ReporterConfig{Type: "console"})
	}
	return cfg.ValidateAndApplyDefaults()
}

// setForwarderAddress points every forwarder at addr, adding one if the
// config has none.
func setForwarderAddress(cfg *config.GlobalConfig, addr string) {
	found := false
	for i := range cfg.Reporters {
		if cfg.Reporters[i].Type != "forwarder" {
			continue
		}
		opts := make(map[string]any, len(cfg.Reporters[i].Options)+1)
		for k, v := range cfg.Reporters[i].Options {
			opts[k] = v
		}
		opts["address"] = addr
		cfg.Reporters[i].Options = opts
		found = true
	}
	if !found {
		cfg.Reporters = append(cfg.Reporters, config.ReporterConfig{
			Type:    "forwarder",
			Options: map[string]any{"address": addr},
		})
	}
}

// runCapture runs a capture session with the metrics endpoint if enabled.
func runCapture(ctx context.Context, cfg *config.GlobalConfig, checker privilege.Checker, stdout io.Writer) error {
	warnIfUnprivileged(checker, cfg.Capture.Source)

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := server.Stop(context.WithoutCancel(ctx)); err != nil {
				log.GetLogger().WithError(err).Warn("metrics server stop failed")
			}
		}()
	}

	stats, err := runSession(ctx, cfg, stdout)
	log.GetLogger().WithFields(map[string]interface{}{
		"received":       stats.Received,
		"decoded":        stats.Decoded,
		"reported":       stats.Reported,
		"report_errors":  stats.ReportErrors,
		"queue_dropped":  stats.Dropped,
		"source_dropped": stats.CaptureDropped,
	}).Info("capture session finished")
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}

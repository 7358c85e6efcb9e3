package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"firestige.xyz/siemtap/internal/config"
	"firestige.xyz/siemtap/internal/log"
)

type readOptions struct {
	format string
	filter string
	count  int
}

var readFlags readOptions

var readCmd = &cobra.Command{
	Use:   "read FILE",
	Short: "Decode a pcap or pcapng file to stdout",
	Long: `Decode every frame of a capture file and print one record per frame.
Configured reporters are ignored; records go to stdout only.

Examples:
  siemtap read trace.pcap
  siemtap read trace.pcapng --format text --filter "udp port 53"
  siemtap read trace.pcap --format hex --count 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return runRead(ctx, cfg, args[0], readFlags, os.Stdout)
	},
}

func init() {
	readCmd.Flags().StringVar(&readFlags.format, "format", "json", "output format: json, text or hex")
	readCmd.Flags().StringVarP(&readFlags.filter, "filter", "f", "", "BPF filter expression")
	readCmd.Flags().IntVarP(&readFlags.count, "count", "n", 0, "stop after this many records (0 = all)")
}

// runRead replays path through a pipeline whose only reporter is stdout.
func runRead(ctx context.Context, cfg *config.GlobalConfig, path string, opts readOptions, stdout io.Writer) error {
	cfg.Capture.Source = config.SourceFile
	cfg.Capture.File = path
	cfg.Capture.Filter = opts.filter
	cfg.Capture.MaxPackets = opts.count
	cfg.Output.Format = opts.format
	cfg.Reporters = []config.ReporterConfig{{Type: "console"}}
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return err
	}

	stats, err := runSession(ctx, cfg, stdout)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"file":     path,
		"frames":   stats.Received,
		"records":  stats.Decoded,
		"filtered": stats.CaptureDropped,
	}).Debug("read finished")
	return nil
}

// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "siemtap",
	Short: "siemtap - packet capture and decode engine for SIEM pipelines",
	Long: `siemtap captures Ethernet frames from a live interface or a capture file,
decodes the Ethernet, IPv4 and TCP/UDP headers, classifies the application
protocol by well-known port and emits one record per frame as JSON, a text
block or a hex dump.

Records go to the configured reporters: stdout, a SIEM collector over TCP,
Kafka or a rotated file.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and SIEMTAP_* environment variables when empty)")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(interfacesCmd)
	rootCmd.AddCommand(validateCmd)
}

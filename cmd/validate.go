package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/siemtap/internal/config"
	"firestige.xyz/siemtap/pkg/plugin"
)

var validatePrint bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load and validate the configuration without capturing.

Examples:
  siemtap validate -c config.yml
  siemtap validate -c config.yml --print   # dump the effective configuration`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(configFile, validatePrint, os.Stdout)
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validatePrint, "print", false,
		"print the effective configuration as YAML")
}

func runValidate(path string, print bool, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(out, "INVALID: %v\n", err)
		return err
	}

	if _, err := plugin.GetCapturerFactory(cfg.Capture.Source); err != nil {
		fmt.Fprintf(out, "INVALID: %v\n", err)
		return err
	}
	for i, r := range cfg.Reporters {
		if _, err := plugin.GetReporterFactory(r.Type); err != nil {
			err = fmt.Errorf("reporters[%d]: %w", i, err)
			fmt.Fprintf(out, "INVALID: %v\n", err)
			return err
		}
	}

	fmt.Fprintf(out, "VALID: source=%s format=%s, %d reporter(s)\n",
		cfg.Capture.Source, cfg.Output.Format, len(cfg.Reporters))

	if print {
		data, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	return nil
}

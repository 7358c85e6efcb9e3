package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/siemtap/internal/config"
	"firestige.xyz/siemtap/internal/privilege"
	"firestige.xyz/siemtap/pkg/plugin"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List capture interfaces",
	Long: `List the interfaces the configured live source can capture on and
report whether the process has capture privileges.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		source := cfg.Capture.Source
		if source == config.SourceFile {
			source = config.SourcePcap
		}
		factory, err := plugin.GetCapturerFactory(source)
		if err != nil {
			return err
		}
		capturer := factory()
		if err := capturer.Init(cfg.Capture.Options); err != nil {
			return err
		}

		return runInterfaces(capturer, privilege.System{}, os.Stdout)
	},
}

func runInterfaces(capturer plugin.Capturer, checker privilege.Checker, out io.Writer) error {
	ifaces, err := capturer.Interfaces()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESSES\tFLAGS\tDESCRIPTION")
	for _, iface := range ifaces {
		flags := "-"
		if iface.Loopback {
			flags = "loopback"
		}
		addrs := strings.Join(iface.Addresses, ",")
		if addrs == "" {
			addrs = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", iface.Name, addrs, flags, iface.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d interface(s) via %s\n", len(ifaces), capturer.Name())

	ok, err := checker.Elevated()
	switch {
	case err != nil:
		fmt.Fprintf(out, "Privileges: unknown (%v)\n", err)
	case ok:
		fmt.Fprintln(out, "Privileges: elevated, live capture available")
	default:
		fmt.Fprintf(out, "Privileges: not elevated; %s\n", privilege.Hint())
	}
	return nil
}

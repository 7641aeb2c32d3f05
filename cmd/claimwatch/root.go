package main

import (
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
	jsonLogs   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "claimwatch",
		Short: "Shipment loss-risk monitoring and claim eligibility",
		Long: `claimwatch watches in-transit shipments that have outlived their expected transit
time, assesses their loss risk and tracks when they become eligible for a claim.

Sweeps are triggered externally, either over HTTP (claimwatch serve) or one at a
time from cron (claimwatch sweep <name>).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "emit JSON logs")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSweepCmd(opts))
	return cmd
}

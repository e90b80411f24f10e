package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/fleetwatch/internal/version"
)

var (
	configPath    string
	tokenOverride string

	rootCmd = &cobra.Command{
		Use:           "fleetwatch",
		Short:         "Watch an agent fleet's status channel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Hold the status channel open until interrupted",
		Long: `Connects to the dashboard status channel, reconnecting with backoff,
logs agent events, serves /metrics and /health, and optionally journals
every event to Postgres.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fleetwatch", version.String())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/fleetwatch.local.yaml", "path to config file")
	watchCmd.Flags().StringVar(&tokenOverride, "token", "", "auth token (overrides channel.token)")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

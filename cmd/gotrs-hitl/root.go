package main

import (
	"github.com/spf13/cobra"

	"github.com/gotrs-io/gotrs-hitl/internal/version"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
	orgFlag  int64
	jsonOut  bool
)

var rootCmd = &cobra.Command{
	Use:   "gotrs-hitl",
	Short: "GOTRS HITL client - human hand-off for support conversations",
	Long: `GOTRS HITL client

Manages HITL types of an organization, listens for hand-off requests on the
live channel and claims conversations for the calling user.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	flags.StringVar(&envFile, "env-file", ".env", "env file loaded before the config")
	flags.StringVar(&logLevel, "log-level", "", "override logging.level")
	flags.Int64Var(&orgFlag, "org", 0, "organization id (overrides organization.id)")
	flags.BoolVar(&jsonOut, "json", false, "print JSON instead of tables")

	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(reassignCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

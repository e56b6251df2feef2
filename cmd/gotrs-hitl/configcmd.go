package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/gotrs-hitl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with credentials masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := config.Load(config.Options{File: cfgFile, EnvFile: envFile})
		if err != nil {
			return err
		}
		if file := m.ConfigFile(); file != "" {
			fmt.Fprintf(os.Stderr, "# %s\n", file)
		}
		if jsonOut {
			return printJSON(m.Redacted())
		}
		out, err := m.YAML()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/gotrs-hitl/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.GetInfo()
		if jsonOut {
			return json.NewEncoder(os.Stdout).Encode(info)
		}
		fmt.Printf("gotrs-hitl %s\n  commit: %s\n  built:  %s\n  go:     %s\n  sdk:    %s\n",
			info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.SDKVersion)
		return nil
	},
}

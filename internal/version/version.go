// Package version carries build information set via -ldflags, e.g.
//
//	-X github.com/gotrs-io/gotrs-hitl/internal/version.Version=v0.3.0
package version

import (
	"fmt"
	"runtime"

	"github.com/gotrs-io/gotrs-hitl/sdk"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the structured form printed by `gotrs-hitl version --json`
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
	SDKVersion string `json:"sdk_version"`
}

func GetInfo() Info {
	return Info{
		Version:    Version,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
		SDKVersion: sdk.Version,
	}
}

// String returns "v0.3.0 (abc1234)"
func String() string {
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}

package version

import "fmt"

// Version, GitCommit and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/openfib/fibcore/pkg/version.Version=v1.0.0 \
//	  -X github.com/openfib/fibcore/pkg/version.GitCommit=abc1234 \
//	  -X github.com/openfib/fibcore/pkg/version.BuildDate=2024-01-01"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the build variables as one line.
func Info() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
}

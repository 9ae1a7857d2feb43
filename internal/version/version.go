package version

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X github.com/go-authgate/grantd/internal/version.Version=..."
var (
	App       = "grantd"
	Version   string
	GitCommit string
	BuildTime string
)

// String returns "grantd <version> (<commit>)", leaving out what is unknown.
func String() string {
	s := App + " " + getVersion()
	if commit := getShortCommit(); commit != "" {
		s += " (" + commit + ")"
	}
	return s
}

// PrintVersion prints the version information
func PrintVersion() {
	fmt.Println(String())
	if BuildTime != "" {
		fmt.Printf("Build time: %s\n", BuildTime)
	}
	fmt.Printf("Go version: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func getShortCommit() string {
	if len(GitCommit) > 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

func getVersion() string {
	if Version != "" {
		return Version
	}
	return "dev"
}

// filedock - command-line client for a filedock file server
package main

import (
	"os"

	"github.com/filedock/filedock/internal/cli"
	"github.com/filedock/filedock/internal/version"
)

// Set by ldflags: -X main.Version=... -X main.BuildTime=...
var (
	Version   = "v0.1.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/citymind/urbanlink/internal/cli/commands"
)

// Set with -ldflags "-X main.version=..." at build time
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	commands.Version = version
	commands.GitCommit = gitCommit
	commands.BuildDate = buildDate

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

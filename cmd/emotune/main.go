// cmd/emotune/main.go
package main

import (
	cmd "github.com/mwiater/emotune/internal/cli"
)

// Set by the release build through -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = cmd.SetVersionInfo
	executeCmd     = cmd.Execute
)

// main starts the emotune CLI application by delegating to the
// cobra root command defined in the emotune package.
func main() {
	setVersionInfo(version, commit, date)
	executeCmd()
}

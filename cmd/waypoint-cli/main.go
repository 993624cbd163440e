// Command waypoint-cli inspects and maintains a Waypoint data directory and
// queries a running waypoint-server.
package main

import (
	"os"

	"github.com/yndnr/waypoint-go/internal/cli/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		command.PrintError("%v", err)
		os.Exit(1)
	}
}

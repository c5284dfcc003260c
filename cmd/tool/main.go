// Command tool is the operator CLI for mwauth-service.
package main

import (
	"os"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/logger"
)

var version = "dev"

func main() {
	logger.InitWithWriter(os.Stderr)

	root := newRootCmd(os.Stdout)
	root.Version = version
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// Command agentcored is the entry point for the Ranya agent daemon.
package main

import (
	"fmt"
	"os"

	"github.com/relaycore/agentd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

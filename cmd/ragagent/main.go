// Command ragagent is the entry point for the RAG corpus assistant. It
// provides a CLI interface (via Cobra) and an optional HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragagent-go/cmd/ragagent/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command medrag is the entry point for the MedRAG medical document
// assistant. It provides a CLI interface (via Cobra) for ingesting documents,
// asking questions, running retrieval evaluations, and serving the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/medrag-io/medrag-go/cmd/medrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

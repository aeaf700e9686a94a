// Command kbqa is the entry point for the knowledge-base question-answering
// service. It provides a CLI interface (via Cobra) and an HTTP server that
// exposes the retrieval-augmented answering pipeline as a REST API.
package main

import (
	"fmt"
	"os"

	"github.com/kbqa-dev/kbqa-go/cmd/kbqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

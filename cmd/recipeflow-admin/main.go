// Command recipeflow-admin runs maintenance tasks against the pipeline
// stores: schema migrations, knowledge learning, card generation and
// operator token minting.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

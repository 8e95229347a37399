// Command phrasectl inspects phrase lists and previews query rewrites.
//
// Usage:
//
//	go run ./cmd/phrasectl rewrite --phrases configs/phrases.txt wheel chair
package main

import (
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

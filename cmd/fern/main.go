package main

import (
	"fmt"
	"os"

	"github.com/Ramsey-B/fern/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fern:", err)
		os.Exit(1)
	}
}

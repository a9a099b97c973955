package main

import (
	"fmt"
	"os"

	_ "github.com/brimdata/semq/cmd/semq/compile"
	_ "github.com/brimdata/semq/cmd/semq/describe"
	_ "github.com/brimdata/semq/cmd/semq/needs"
	"github.com/brimdata/semq/cmd/semq/root"
	_ "github.com/brimdata/semq/cmd/semq/serve"
)

func main() {
	if err := root.Semq.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

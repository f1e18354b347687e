// Command rxdemo runs sample reactive pipelines.
package main

import (
	"os"

	"github.com/xinjiayu/rxcore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

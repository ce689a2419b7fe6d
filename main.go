// Command roosearch crawls the web, indexes what it finds and answers ranked
// queries over HTTP or from the command line.
package main

import (
	"os"

	"github.com/JakeFAU/roosearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Command reqctl is the requisition engine command-line tool.
package main

import (
	"os"

	"github.com/warp/requisition-engine/cli"
)

func main() {
	os.Exit(cli.Execute())
}

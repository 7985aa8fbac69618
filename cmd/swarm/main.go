// Command swarm runs the crypto analyst swarm.
package main

import (
	"os"

	"crypto-swarm/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

// Command tcpframed drives a framed TCP connection from the command
// line, either accepting connections or dialing out to one.
package main

import (
	"fmt"
	"os"

	"github.com/relaycore/tcpsock/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

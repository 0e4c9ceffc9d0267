// Command kvstore is the CLI entry point: run a node with `serve`, or
// talk to one as a client with the `kv` subcommands.
package main

import "github.com/openr/kvstored/cmd"

func main() {
	cmd.Execute()
}

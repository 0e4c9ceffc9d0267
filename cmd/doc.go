// Package cmd implements the command-line interface for the node. It
// provides a hierarchical command structure with operations for running
// a node and interacting with one as a client.
//
// The package is organized into several subpackages:
//
//   - kv: commands for area key-value operations (set, get, dump, peers)
//   - serve: command for starting and configuring a node
//   - util: shared utilities for command-line processing and configuration (internal use)
//
// See kvstored -help for a list of all commands.
package cmd

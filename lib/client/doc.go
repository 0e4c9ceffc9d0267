// Package client provides standalone helpers for talking to one or more
// remote store.Dispatchers as an RPC client, for use by the CLI and
// diagnostic tooling rather than by another node.
//
// DumpAllFromMultiple is the only entry point today: it fans a dump
// request out across a set of Dispatcher endpoints in parallel and
// merges the responses with the same Value Arbiter the Store uses for
// its own peer synchronization.
package client

// Package common holds the configuration structures shared by the RPC
// transport, server and client packages. The wire envelope itself
// lives in rpc/wire, not here: this package is left with just the
// node-facing ServerConfig/ClientConfig pair.
//
// Key Components:
//
//   - ServerConfig: configuration for a node's RPC server, including
//     the areas it serves, its listen endpoint, and transport tuning.
//
//   - ClientConfig: configuration for a client or peer connection,
//     controlling endpoints, timeouts, and retry behavior.
package common

// Package wire defines the request/response envelope exchanged between a
// client and a Dispatcher, and between two nodes acting as area peers.
//
// The package focuses on:
//   - A single flat Message envelope whose populated fields depend on MsgType
//   - Carrying strongly-typed domain values (kv.Value, area.DualMessage,
//     area.SpanningTreeInfo, area.Publication) rather than opaque byte blobs
//   - Factory functions for every Dispatcher and peer-transport operation
//
// Key Components:
//
//   - Message: Envelope for both requests and responses. The target area
//     always travels inside the Message (AreaID field), never in the
//     transport frame, since a node multiplexes every configured area
//     through one Dispatcher.
//
//   - MessageType: Enumerates the Dispatcher's area-scoped operations plus
//     the peer-transport operations a remote Dispatcher exposes to flood
//     publications and run full sync against.
package wire

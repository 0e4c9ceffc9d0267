// Package server implements the RPC server side of a node: it exposes
// a single store.Dispatcher over an RPC transport.
//
// Unlike dKV, which ran a shard map and chose an adapter per shard type
// (local/remote store, local/remote lock manager), a node here serves
// every area it is configured for through one Dispatcher. The area to
// operate on travels inside the wire.Message itself, so the server has
// nothing left to route on but MsgType; handle (adapter.go) is a single
// switch over the Dispatcher's nine area operations plus the four
// peer-transport operations (SendPublication, RequestHashes,
// RequestValues, PushValues) that let another node's flood-and-sync
// loop reach this one over the same connection a client would use.
//
// Usage:
//
//	disp := store.NewDispatcher(supervisor)
//	s := server.NewRPCServer(config, disp, tcp.NewTCPServerTransport(), serializer.NewGOBSerializer())
//	if err := s.Serve(); err != nil {
//		log.Fatalf("server error: %v", err)
//	}
package server

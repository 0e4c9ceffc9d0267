// Package store wires a node's configured areas together and exposes
// the operations every other subsystem is built on.
//
// Config: LoadNodeConfig reads a node's NodeConfig (NodeName, Domain,
// Areas, KVOptions) from a JSON file (path given by the caller or
// OPENR_CONFIG), .env files and OPENR_-prefixed environment variables
// via viper/godotenv.
//
// Supervisor: owns the lifecycle of every configured area.Area,
// constructing each one's Transport via a TransportFactory and
// starting the background goroutines that drive peer resync.
//
// Dispatcher: services the nine area-scoped operations (SetKeyVals,
// GetKeyVals, DumpKeyVals, DumpHashes, GetPeers, AddPeer, DelPeer,
// ProcessDualMessage, UpdateFloodTopologyChild, GetSpanningTreeInfos)
// plus subscription fan-out (MultiAreaSubscription), translating
// UnknownArea and InvalidArgument into errors the RPC layer can send
// back over the wire. It is the only exported entry point other
// packages (cmd/*, rpc/server, lib/store/gossip) use to reach an area.
package store

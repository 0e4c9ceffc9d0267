// Package client implements the RPC client side of talking to a
// remote node's store.Dispatcher: a request/response client for
// issuing area operations, and an area.Transport implementation for
// the peer-to-peer traffic (publications, full-sync hash/value
// exchange) a Supervisor's flood-and-sync loops generate on their own.
//
// DispatcherClient is the request/response half, replacing dKV's
// rpcStore/rpcLockMgr pair (client_istore.go, client_ilockmgr.go) with
// a single client covering every Dispatcher operation instead of a
// single-key store API.
//
// PeerTransportFactory is the peer-to-peer half: it builds one
// area.Transport per configured area, each lazily dialing peers by
// name through a PeerResolver and caching the resulting connections.
// It is the RPC implementation of store.TransportFactory.
//
// Usage:
//
//	cfg := common.ClientConfig{Endpoints: []string{"localhost:5000"}, TimeoutSecond: 5, RetryCount: 3}
//	c, _ := client.NewDispatcherClient(cfg, tcp.NewTCPClientTransport(), serializer.NewGOBSerializer())
//	kvs, _ := c.GetKeyVals("area1", []string{"mykey"})
//
//	resolver := client.StaticPeerResolver{"node-b": "10.0.0.2:5000"}
//	factory := client.NewPeerTransportFactory(resolver, tcp.NewTCPClientTransport, serializer.NewGOBSerializer(), 5, 3)
//	supervisor, _ := store.NewSupervisor(nodeConfig, factory.ForArea)
package client

package client

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/store/area"
	"github.com/openr/kvstored/rpc/common"
	"github.com/openr/kvstored/rpc/serializer"
	"github.com/openr/kvstored/rpc/transport"
	"github.com/openr/kvstored/rpc/wire"
)

// PeerResolver maps a peer name to the RPC endpoint serving it. The
// node discovery layer (lib/store/gossip) implements this over
// memberlist; tests and single-host setups can use StaticPeerResolver.
type PeerResolver interface {
	Resolve(peerName string) (endpoint string, ok bool)
}

// StaticPeerResolver is a fixed peerName->endpoint map, grounded on
// dKV's ClusterMembers configuration (rpc/common/config.go) generalized
// from Raft replica IDs to named peers.
type StaticPeerResolver map[string]string

func (r StaticPeerResolver) Resolve(peerName string) (string, bool) {
	endpoint, ok := r[peerName]
	return endpoint, ok
}

// PeerTransportFactory builds one area.Transport per configured area,
// each dialing peers on demand through the same RPC stack a
// DispatcherClient uses. This is store.TransportFactory's RPC
// implementation, replacing dKV's single Raft-backed transport
// (dstore.NewDistributedStore) with one connection pool per area.
type PeerTransportFactory struct {
	resolver      PeerResolver
	newTransport  func() transport.IRPCClientTransport
	serializer    serializer.IRPCSerializer
	timeoutSecond int
	retryCount    int
}

// NewPeerTransportFactory builds a factory. newTransport is called once
// per peer connection the returned transports need to open, e.g.
// tcp.NewTCPClientTransport.
func NewPeerTransportFactory(
	resolver PeerResolver,
	newTransport func() transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
	timeoutSecond, retryCount int,
) *PeerTransportFactory {
	return &PeerTransportFactory{
		resolver:      resolver,
		newTransport:  newTransport,
		serializer:    serializer,
		timeoutSecond: timeoutSecond,
		retryCount:    retryCount,
	}
}

// ForArea builds the area.Transport for one area. Its signature matches
// store.TransportFactory, so it can be passed directly to
// store.NewSupervisor.
func (f *PeerTransportFactory) ForArea(areaID kv.AreaID) area.Transport {
	return &peerTransport{
		areaID:  areaID,
		factory: f,
		conns:   xsync.NewMapOf[string, transport.IRPCClientTransport](),
	}
}

// peerTransport implements area.Transport for a single area, lazily
// dialing and caching one client connection per peer name.
type peerTransport struct {
	areaID  kv.AreaID
	factory *PeerTransportFactory
	conns   *xsync.MapOf[string, transport.IRPCClientTransport]
}

func (t *peerTransport) connFor(peerName string) (transport.IRPCClientTransport, error) {
	if conn, ok := t.conns.Load(peerName); ok {
		return conn, nil
	}

	endpoint, ok := t.factory.resolver.Resolve(peerName)
	if !ok {
		return nil, fmt.Errorf("peer_transport: unknown peer %q", peerName)
	}

	conn := t.factory.newTransport()
	cfg := common.ClientConfig{
		Endpoints:              []string{endpoint},
		TimeoutSecond:          t.factory.timeoutSecond,
		RetryCount:             t.factory.retryCount,
		ConnectionsPerEndpoint: 1,
	}
	if err := conn.Connect(cfg); err != nil {
		return nil, fmt.Errorf("peer_transport: connect to %s (%s): %w", peerName, endpoint, err)
	}

	actual, loaded := t.conns.LoadOrStore(peerName, conn)
	if loaded {
		_ = conn.Close()
	}
	return actual, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see area.Transport)
// --------------------------------------------------------------------------

func (t *peerTransport) SendPublication(peerName string, pub area.Publication) error {
	conn, err := t.connFor(peerName)
	if err != nil {
		return err
	}
	_, err = invoke(wire.NewSendPublicationRequest(t.areaID, peerName, pub), conn, t.factory.serializer)
	return err
}

func (t *peerTransport) RequestHashes(peerName string, filter *kv.Filters) (map[string]kv.Value, error) {
	conn, err := t.connFor(peerName)
	if err != nil {
		return nil, err
	}
	prefixes, originators, operator := filtersToWire(filter)
	resp, err := invoke(wire.NewRequestHashesRequest(t.areaID, prefixes, originators, operator), conn, t.factory.serializer)
	if err != nil {
		return nil, err
	}
	return resp.KeyVals, nil
}

func (t *peerTransport) RequestValues(peerName string, keys []string) (map[string]kv.Value, error) {
	conn, err := t.connFor(peerName)
	if err != nil {
		return nil, err
	}
	resp, err := invoke(wire.NewRequestValuesRequest(t.areaID, keys), conn, t.factory.serializer)
	if err != nil {
		return nil, err
	}
	return resp.KeyVals, nil
}

func (t *peerTransport) PushValues(peerName string, values map[string]kv.Value) error {
	conn, err := t.connFor(peerName)
	if err != nil {
		return err
	}
	req := wire.NewPushValuesRequest(t.areaID, values)
	req.PeerName = peerName
	_, err = invoke(req, conn, t.factory.serializer)
	return err
}

// filtersToWire extracts the raw patterns behind a compiled
// *kv.Filters so they can be re-sent over the wire and recompiled on
// the receiving node; a nil filter means match-everything.
func filtersToWire(filter *kv.Filters) (prefixes, originators []string, operator kv.Operator) {
	if filter == nil {
		return nil, nil, kv.OperatorOR
	}
	return filter.Prefixes(), filter.Originators(), filter.Operator()
}

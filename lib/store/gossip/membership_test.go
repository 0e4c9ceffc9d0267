package gossip

import (
	"testing"

	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/store"
	"github.com/openr/kvstored/lib/store/area"
)

// newTestMembership builds a Membership without starting a real
// memberlist transport, exercising addPeer/removePeer/Bind/Resolve in
// isolation from the network.
func newTestMembership(selfName string) *Membership {
	return &Membership{
		selfName:  selfName,
		selfRPC:   "tcp://self:9000",
		endpoints: map[string]string{selfName: "tcp://self:9000"},
	}
}

func newTestDispatcher(t *testing.T, areaID kv.AreaID) *store.Dispatcher {
	t.Helper()
	cfg := store.NodeConfig{
		NodeName: "node1",
		Areas:    []store.AreaConfig{{AreaID: areaID}},
		KV:       store.KVOptions{SyncIntervalSec: 30},
	}
	s, err := store.NewSupervisor(cfg, func(kv.AreaID) area.Transport { return fakeAreaTransport{} })
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}
	t.Cleanup(s.Close)
	return store.NewDispatcher(s)
}

type fakeAreaTransport struct{}

func (fakeAreaTransport) SendPublication(string, area.Publication) error { return nil }
func (fakeAreaTransport) RequestHashes(string, *kv.Filters) (map[string]kv.Value, error) {
	return map[string]kv.Value{}, nil
}
func (fakeAreaTransport) RequestValues(string, []string) (map[string]kv.Value, error) {
	return map[string]kv.Value{}, nil
}
func (fakeAreaTransport) PushValues(string, map[string]kv.Value) error { return nil }

func TestAddPeerBeforeBindOnlyTracksEndpoint(t *testing.T) {
	m := newTestMembership("self")

	m.addPeer("peer1", "tcp://10.0.0.1:9000")

	endpoint, ok := m.Resolve("peer1")
	if !ok || endpoint != "tcp://10.0.0.1:9000" {
		t.Fatalf("Resolve(peer1) = %q, %v, want tcp://10.0.0.1:9000, true", endpoint, ok)
	}
}

func TestBindReplaysKnownPeersIntoDispatcher(t *testing.T) {
	m := newTestMembership("self")
	m.addPeer("peer1", "tcp://10.0.0.1:9000")
	m.addPeer("peer2", "tcp://10.0.0.2:9000")

	d := newTestDispatcher(t, "area1")
	m.Bind(d, []kv.AreaID{"area1"})

	peers, err := d.GetPeers("area1")
	if err != nil {
		t.Fatalf("GetPeers() error = %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("GetPeers() = %v, want 2 peers replayed from Bind", peers)
	}

	// Endpoints gossiped before Bind must survive the replay's
	// empty-endpoint sentinel call.
	if endpoint, ok := m.Resolve("peer1"); !ok || endpoint != "tcp://10.0.0.1:9000" {
		t.Fatalf("Resolve(peer1) after Bind = %q, %v, want endpoint preserved", endpoint, ok)
	}
}

func TestAddPeerAfterBindRegistersOnDispatcher(t *testing.T) {
	m := newTestMembership("self")
	d := newTestDispatcher(t, "area1")
	m.Bind(d, []kv.AreaID{"area1"})

	m.addPeer("peer3", "tcp://10.0.0.3:9000")

	peers, err := d.GetPeers("area1")
	if err != nil || len(peers) != 1 || peers[0] != "peer3" {
		t.Fatalf("GetPeers() = %v, %v, want [peer3]", peers, err)
	}
}

func TestRemovePeerAfterBindUnregistersFromDispatcher(t *testing.T) {
	m := newTestMembership("self")
	d := newTestDispatcher(t, "area1")
	m.Bind(d, []kv.AreaID{"area1"})
	m.addPeer("peer4", "tcp://10.0.0.4:9000")

	m.removePeer("peer4")

	if _, ok := m.Resolve("peer4"); ok {
		t.Fatal("Resolve(peer4) should fail after removePeer")
	}
	peers, err := d.GetPeers("area1")
	if err != nil || len(peers) != 0 {
		t.Fatalf("GetPeers() after removePeer = %v, %v, want []", peers, err)
	}
}

func TestAddPeerIgnoresSelf(t *testing.T) {
	m := newTestMembership("self")
	d := newTestDispatcher(t, "area1")
	m.Bind(d, []kv.AreaID{"area1"})

	m.addPeer("self", "tcp://self:9999")

	if endpoint, _ := m.Resolve("self"); endpoint != "tcp://self:9000" {
		t.Fatalf("addPeer(self) should not overwrite its own endpoint, got %q", endpoint)
	}
	peers, err := d.GetPeers("area1")
	if err != nil || len(peers) != 0 {
		t.Fatalf("GetPeers() = %v, %v, want [] (self is never a peer)", peers, err)
	}
}

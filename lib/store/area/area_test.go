package area

import (
	"sync"
	"testing"
	"time"

	"github.com/openr/kvstored/lib/kv"
)

// fakeTransport records every operation issued against it so tests can
// assert on flood behavior without a real network.
type fakeTransport struct {
	mu            sync.Mutex
	sentPubs      map[string][]Publication
	hashResponses map[string]map[string]kv.Value
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sentPubs: make(map[string][]Publication)}
}

func (f *fakeTransport) SendPublication(peerName string, pub Publication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentPubs[peerName] = append(f.sentPubs[peerName], pub)
	return nil
}

func (f *fakeTransport) RequestHashes(peerName string, filter *kv.Filters) (map[string]kv.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hashResponses[peerName], nil
}

func (f *fakeTransport) RequestValues(peerName string, keys []string) (map[string]kv.Value, error) {
	return map[string]kv.Value{}, nil
}

func (f *fakeTransport) PushValues(peerName string, values map[string]kv.Value) error {
	return nil
}

func newTestArea(t *testing.T, transport Transport) *Area {
	t.Helper()
	a := NewArea(Config{ID: "area1", SelfNodeID: "node1"}, transport, nil)
	t.Cleanup(a.Close)
	return a
}

func TestSetAndGetKeyVals(t *testing.T) {
	a := newTestArea(t, newFakeTransport())

	delta := a.SetKeyVals(map[string]kv.Value{
		"k1": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("x")), TTLMs: 30_000, TTLVersion: 1},
	})
	if _, ok := delta["k1"]; !ok {
		t.Fatal("expected k1 in delta")
	}

	got := a.GetKeyVals([]string{"k1"})
	v, ok := got["k1"]
	if !ok || string(v.Body.Bytes) != "x" {
		t.Fatalf("GetKeyVals() = %+v, want k1=x", got)
	}
}

func TestSetKeyValsFloodsToPeers(t *testing.T) {
	transport := newFakeTransport()
	a := newTestArea(t, transport)
	a.AddPeer("peer1")
	a.AddPeer("peer2")

	a.SetKeyVals(map[string]kv.Value{
		"k1": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("x")), TTLMs: 30_000},
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		p1, ok1 := drainSent(a, "peer1")
		p2, ok2 := drainSent(a, "peer2")
		if ok1 && ok2 {
			if _, ok := p1.KeyVals["k1"]; !ok {
				t.Fatalf("peer1 publication missing k1: %+v", p1)
			}
			if _, ok := p2.KeyVals["k1"]; !ok {
				t.Fatalf("peer2 publication missing k1: %+v", p2)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for flood to both peers")
		}
		time.Sleep(time.Millisecond)
	}
}

func drainSent(a *Area, peer string) (Publication, bool) {
	ch, ok := a.PeerOutbound(peer)
	if !ok {
		return Publication{}, false
	}
	select {
	case pub := <-ch:
		return pub, true
	default:
		return Publication{}, false
	}
}

func TestReceivePublicationSplitHorizon(t *testing.T) {
	transport := newFakeTransport()
	a := newTestArea(t, transport)
	a.AddPeer("sourcePeer")
	a.AddPeer("otherPeer")

	a.ReceivePublication("sourcePeer", Publication{
		Area:    "area1",
		KeyVals: map[string]kv.Value{"k1": {Version: 1, OriginatorID: "remote", Body: kv.FullBody([]byte("x")), TTLMs: 30_000}},
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := drainSent(a, "otherPeer"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for flood to otherPeer")
		}
		time.Sleep(time.Millisecond)
	}

	if _, ok := drainSent(a, "sourcePeer"); ok {
		t.Fatal("split-horizon violated: publication relayed back to its source peer")
	}
}

func TestTtlEvictionRemovesKeyAndNotifiesSubscriber(t *testing.T) {
	a := newTestArea(t, newFakeTransport())
	sub := a.Subscribe(nil, false, false)

	a.SetKeyVals(map[string]kv.Value{
		"k1": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("x")), TTLMs: 20},
	})

	// The subscription was opened against an empty database, so no
	// initial snapshot publication is sent; drain only the set's own
	// delta.
	<-sub.Recv()

	deadline := time.Now().Add(2 * time.Second)
	for {
		got := a.GetKeyVals([]string{"k1"})
		if _, present := got["k1"]; !present {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for ttl eviction")
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case pub := <-sub.Recv():
		if len(pub.ExpiredKeys) != 1 || pub.ExpiredKeys[0] != "k1" {
			t.Fatalf("expected expiry notification for k1, got %+v", pub)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for expiry publication")
	}
}

func TestAddAndDelPeer(t *testing.T) {
	a := newTestArea(t, newFakeTransport())
	a.AddPeer("p1")
	a.AddPeer("p2")

	peers := a.GetPeers()
	if len(peers) != 2 {
		t.Fatalf("GetPeers() = %v, want 2 peers", peers)
	}

	a.DelPeer("p1")
	peers = a.GetPeers()
	if len(peers) != 1 || peers[0] != "p2" {
		t.Fatalf("GetPeers() after DelPeer = %v, want [p2]", peers)
	}
}

func TestDumpKeyValsAndDumpHashes(t *testing.T) {
	a := newTestArea(t, newFakeTransport())
	a.SetKeyVals(map[string]kv.Value{
		"k1": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("x")), TTLMs: 30_000},
	})

	full := a.DumpKeyVals(nil)
	if v := full["k1"]; !v.Body.HasValue() {
		t.Error("DumpKeyVals should carry full values")
	}

	hashes := a.DumpHashes(nil)
	if v := hashes["k1"]; v.Body.HasValue() {
		t.Error("DumpHashes should omit values")
	}
}

func TestProcessDualMessageElectsParent(t *testing.T) {
	a := newTestArea(t, newFakeTransport())

	changed := a.ProcessDualMessage(DualMessage{Root: "root1", Sender: "neighborA", Cost: 0})
	if !changed {
		t.Fatal("expected first message to change spanning-tree state")
	}

	infos := a.GetSpanningTreeInfos()
	if len(infos) != 1 || infos[0].Parent != "neighborA" {
		t.Fatalf("GetSpanningTreeInfos() = %+v, want parent=neighborA", infos)
	}
}

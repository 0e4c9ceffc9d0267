package server

import (
	"testing"

	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/store"
	"github.com/openr/kvstored/lib/store/area"
	"github.com/openr/kvstored/rpc/wire"
)

type nopTransport struct{}

func (nopTransport) SendPublication(string, area.Publication) error { return nil }
func (nopTransport) RequestHashes(string, *kv.Filters) (map[string]kv.Value, error) {
	return map[string]kv.Value{}, nil
}
func (nopTransport) RequestValues(string, []string) (map[string]kv.Value, error) {
	return map[string]kv.Value{}, nil
}
func (nopTransport) PushValues(string, map[string]kv.Value) error { return nil }

func newTestDispatcher(t *testing.T) *store.Dispatcher {
	t.Helper()
	cfg := store.NodeConfig{
		NodeName: "node1",
		Areas:    []store.AreaConfig{{AreaID: "area1"}},
		KV:       store.KVOptions{SyncIntervalSec: 30},
	}
	s, err := store.NewSupervisor(cfg, func(kv.AreaID) area.Transport { return nopTransport{} })
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}
	t.Cleanup(s.Close)
	return store.NewDispatcher(s)
}

func TestHandleSetAndGetKeyVals(t *testing.T) {
	d := newTestDispatcher(t)

	setReq := wire.NewSetKeyValsRequest("area1", map[string]kv.Value{
		"k1": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("x")), TTLMs: 30_000},
	})
	resp := handle(d, setReq)
	if resp.Err != "" {
		t.Fatalf("handle(set) error = %s", resp.Err)
	}
	if _, ok := resp.KeyVals["k1"]; !ok {
		t.Fatalf("handle(set) response missing k1: %+v", resp)
	}

	getReq := wire.NewGetKeyValsRequest("area1", []string{"k1"})
	resp = handle(d, getReq)
	if resp.Err != "" {
		t.Fatalf("handle(get) error = %s", resp.Err)
	}
	if _, ok := resp.KeyVals["k1"]; !ok {
		t.Fatalf("handle(get) response missing k1: %+v", resp)
	}
}

func TestHandleUnknownAreaReturnsErrorMessage(t *testing.T) {
	d := newTestDispatcher(t)

	resp := handle(d, wire.NewGetKeyValsRequest("nope", []string{"k1"}))
	if resp.Err == "" {
		t.Fatal("handle(get on unknown area) expected an error response")
	}
}

func TestHandleAddPeerThenSendPublicationMerges(t *testing.T) {
	d := newTestDispatcher(t)

	if resp := handle(d, wire.NewAddPeerRequest("area1", "peer1")); resp.Err != "" {
		t.Fatalf("handle(addpeer) error = %s", resp.Err)
	}

	pub := area.Publication{Area: "area1", KeyVals: map[string]kv.Value{
		"k2": {Version: 1, OriginatorID: "peer1", Body: kv.FullBody([]byte("y")), TTLMs: 30_000},
	}}
	if resp := handle(d, wire.NewSendPublicationRequest("area1", "peer1", pub)); resp.Err != "" {
		t.Fatalf("handle(sendpublication) error = %s", resp.Err)
	}

	resp := handle(d, wire.NewGetKeyValsRequest("area1", []string{"k2"}))
	if resp.Err != "" {
		t.Fatalf("handle(get) error = %s", resp.Err)
	}
	if _, ok := resp.KeyVals["k2"]; !ok {
		t.Fatalf("expected k2 merged from peer publication, got %+v", resp)
	}
}

func TestHandleUnsupportedMessageType(t *testing.T) {
	d := newTestDispatcher(t)

	resp := handle(d, &wire.Message{MsgType: wire.MsgTUnknown})
	if resp.MsgType != wire.MsgTError {
		t.Fatalf("handle(unknown msg type) = %+v, want MsgTError", resp)
	}
}

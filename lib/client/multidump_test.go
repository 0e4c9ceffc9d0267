package client

import (
	"errors"
	"testing"

	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/rpc/common"
	"github.com/openr/kvstored/rpc/serializer"
	"github.com/openr/kvstored/rpc/transport"
	"github.com/openr/kvstored/rpc/wire"
)

// fakeTransport answers Dispatcher requests from an in-memory key-value
// map, or fails Connect/Send entirely when unreachable is set.
type fakeTransport struct {
	keyVals     map[string]kv.Value
	unreachable bool
	serializer  serializer.IRPCSerializer
}

func (t *fakeTransport) Connect(config common.ClientConfig) error {
	if t.unreachable {
		return errors.New("fake: connect refused")
	}
	return nil
}

func (t *fakeTransport) Send(req []byte) ([]byte, error) {
	var msg wire.Message
	if err := t.serializer.Deserialize(req, &msg); err != nil {
		return nil, err
	}
	resp := wire.NewDumpKeyValsResponse(t.keyVals, nil)
	return t.serializer.Serialize(*resp)
}

func (t *fakeTransport) Close() error { return nil }

func newFakeTransport(keyVals map[string]kv.Value, unreachable bool) func() transport.IRPCClientTransport {
	return func() transport.IRPCClientTransport {
		return &fakeTransport{keyVals: keyVals, unreachable: unreachable, serializer: serializer.NewGOBSerializer()}
	}
}

func TestMergeIntoKeepsArbiterWinner(t *testing.T) {
	dst := map[string]kv.Value{
		"k": {Version: 1, OriginatorID: "a", Body: kv.FullBody([]byte("old"))},
	}
	src := map[string]kv.Value{
		"k": {Version: 2, OriginatorID: "a", Body: kv.FullBody([]byte("new"))},
		"j": {Version: 1, OriginatorID: "a", Body: kv.FullBody([]byte("first"))},
	}

	mergeInto(dst, src)

	if string(dst["k"].Body.Bytes) != "new" {
		t.Fatalf("expected higher version to win, got %q", dst["k"].Body.Bytes)
	}
	if string(dst["j"].Body.Bytes) != "first" {
		t.Fatalf("expected new key to be added, got %q", dst["j"].Body.Bytes)
	}
}

func TestMergeIntoIgnoresUnknownOutcome(t *testing.T) {
	dst := map[string]kv.Value{
		"k": {Version: 1, OriginatorID: "a", Body: kv.FullBody([]byte("full"))},
	}
	src := map[string]kv.Value{
		"k": {Version: 2, OriginatorID: "a", Body: kv.HashOnlyBody(123)},
	}

	mergeInto(dst, src)

	if dst["k"].Body.Kind != kv.BodyFull {
		t.Fatalf("expected full body to survive an Unknown comparison, got %v", dst["k"].Body.Kind)
	}
}

func TestDumpAllFromMultipleMergesAndTracksUnreachable(t *testing.T) {
	ser := serializer.NewGOBSerializer()

	good := map[string]kv.Value{
		"k1": {Version: 1, OriginatorID: "a", Body: kv.FullBody([]byte("v1"))},
	}
	better := map[string]kv.Value{
		"k1": {Version: 2, OriginatorID: "a", Body: kv.FullBody([]byte("v2"))},
		"k2": {Version: 1, OriginatorID: "b", Body: kv.FullBody([]byte("v3"))},
	}

	transports := map[string]func() transport.IRPCClientTransport{
		"good":   newFakeTransport(good, false),
		"better": newFakeTransport(better, false),
		"down":   newFakeTransport(nil, true),
	}

	var endpoints []string
	for name := range transports {
		endpoints = append(endpoints, name)
	}

	result, err := DumpAllFromMultiple(endpoints, MultiDumpRequest{
		AreaID:     kv.AreaID("area1"),
		Serializer: ser,
		NewTransport: func() transport.IRPCClientTransport {
			return &routingTransport{transports: transports}
		},
	})
	if err == nil {
		t.Fatalf("expected an aggregated error for the unreachable endpoint")
	}
	if len(result.Unreachable) != 1 || result.Unreachable[0] != "down" {
		t.Fatalf("expected exactly [down] unreachable, got %v", result.Unreachable)
	}
	if string(result.KeyVals["k1"].Body.Bytes) != "v2" {
		t.Fatalf("expected arbiter to pick the higher version for k1, got %q", result.KeyVals["k1"].Body.Bytes)
	}
	if string(result.KeyVals["k2"].Body.Bytes) != "v3" {
		t.Fatalf("expected k2 to be present from the better store, got %q", result.KeyVals["k2"].Body.Bytes)
	}
}

func TestDumpAllFromMultipleTreatsParseFailureAsUnreachable(t *testing.T) {
	ser := serializer.NewGOBSerializer()

	good := map[string]kv.Value{
		"k1": {Version: 1, OriginatorID: "a", Body: kv.FullBody([]byte("42"))},
	}
	bad := map[string]kv.Value{
		"k2": {Version: 1, OriginatorID: "b", Body: kv.FullBody([]byte("not-a-number"))},
	}

	transports := map[string]func() transport.IRPCClientTransport{
		"good": newFakeTransport(good, false),
		"bad":  newFakeTransport(bad, false),
	}

	var endpoints []string
	for name := range transports {
		endpoints = append(endpoints, name)
	}

	result, err := DumpAllFromMultiple(endpoints, MultiDumpRequest{
		AreaID:     kv.AreaID("area1"),
		Serializer: ser,
		NewTransport: func() transport.IRPCClientTransport {
			return &routingTransport{transports: transports}
		},
		Parse: func(b []byte) error {
			for _, c := range b {
				if c < '0' || c > '9' {
					return errors.New("not numeric")
				}
			}
			return nil
		},
	})
	if err == nil {
		t.Fatalf("expected an aggregated error for the unparseable endpoint")
	}
	if len(result.Unreachable) != 1 || result.Unreachable[0] != "bad" {
		t.Fatalf("expected exactly [bad] unreachable, got %v", result.Unreachable)
	}
	if string(result.KeyVals["k1"].Body.Bytes) != "42" {
		t.Fatalf("expected k1 from the parseable endpoint to still merge, got %q", result.KeyVals["k1"].Body.Bytes)
	}
	if _, ok := result.KeyVals["k2"]; ok {
		t.Fatalf("expected k2 from the unparseable endpoint to be dropped")
	}
}

// routingTransport picks which fakeTransport to delegate to based on the
// single endpoint it was Connect-ed with, since dumpOne builds a fresh
// transport per endpoint through NewTransport with no endpoint argument.
type routingTransport struct {
	transports map[string]func() transport.IRPCClientTransport
	delegate   transport.IRPCClientTransport
}

func (r *routingTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) != 1 {
		return errors.New("routingTransport: expected exactly one endpoint")
	}
	factory, ok := r.transports[config.Endpoints[0]]
	if !ok {
		return errors.New("routingTransport: unknown endpoint")
	}
	r.delegate = factory()
	return r.delegate.Connect(config)
}

func (r *routingTransport) Send(req []byte) ([]byte, error) { return r.delegate.Send(req) }
func (r *routingTransport) Close() error                    { return r.delegate.Close() }

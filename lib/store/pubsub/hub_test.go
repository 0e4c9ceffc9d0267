package pubsub

import (
	"testing"

	"github.com/openr/kvstored/lib/kv"
)

func emptySnapshot(kv.AreaID, *kv.Filters) map[string]kv.Value { return nil }

func TestSubscribeDeliversInitialSnapshotBeforeDeltas(t *testing.T) {
	h := NewHub()
	existing := map[string]kv.Value{
		"k1": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("v1")), TTLMs: 1000},
	}
	sub := h.Subscribe([]kv.AreaID{"area1"}, nil, false, false, 1000, func(kv.AreaID, *kv.Filters) map[string]kv.Value {
		return existing
	})

	h.Publish("area1", map[string]kv.Value{
		"k2": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("v2")), TTLMs: 1000},
	}, 2000)

	first := <-sub.Recv()
	if _, ok := first.KeyVals["k1"]; !ok {
		t.Fatalf("first publication should be the snapshot, got %+v", first)
	}

	second := <-sub.Recv()
	if _, ok := second.KeyVals["k2"]; !ok {
		t.Fatalf("second publication should be the delta, got %+v", second)
	}
}

func TestPublishSkipsSubscriptionsForOtherAreas(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe([]kv.AreaID{"area1"}, nil, false, false, 0, emptySnapshot)

	h.Publish("area2", map[string]kv.Value{
		"k": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("v")), TTLMs: 1000},
	}, 100)

	select {
	case pub := <-sub.Recv():
		t.Fatalf("subscription for area1 should not receive area2 publication, got %+v", pub)
	default:
	}
}

func TestPublishAppliesDoNotPublishValueFlag(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe([]kv.AreaID{"area1"}, nil, false, true, 0, emptySnapshot)

	h.Publish("area1", map[string]kv.Value{
		"k": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("secret")), TTLMs: 1000},
	}, 100)

	pub := <-sub.Recv()
	v := pub.KeyVals["k"]
	if v.Body.HasValue() {
		t.Errorf("doNotPublishValue should strip the payload, got %+v", v)
	}
}

func TestPublishAppliesIgnoreTtlFlag(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe([]kv.AreaID{"area1"}, nil, true, false, 0, emptySnapshot)

	h.Publish("area1", map[string]kv.Value{
		"ttlOnly": {Version: 1, OriginatorID: "node1", Body: kv.TTLOnlyBody(), TTLMs: 1000},
		"full":    {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("v")), TTLMs: 1000},
	}, 100)

	pub := <-sub.Recv()
	if _, ok := pub.KeyVals["ttlOnly"]; ok {
		t.Error("ignoreTtl should drop value-less ttl-only entries")
	}
	if _, ok := pub.KeyVals["full"]; !ok {
		t.Error("full entry should still be delivered")
	}
}

func TestPublishOverflowCancelsSubscriptionWithLagged(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe([]kv.AreaID{"area1"}, nil, false, false, 0, emptySnapshot)

	for i := 0; i < DefaultSubscriptionQueueCapacity+1; i++ {
		h.Publish("area1", map[string]kv.Value{
			"k": {Version: uint64(i + 1), OriginatorID: "node1", Body: kv.FullBody([]byte("v")), TTLMs: 1000},
		}, int64(i))
	}

	select {
	case err := <-sub.Lagged():
		if !kv.Is(err, kv.Lagged) {
			t.Errorf("expected a Lagged-kind error, got %v", err)
		}
	default:
		t.Fatal("expected subscription to be cancelled with a lagged error")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe([]kv.AreaID{"area1"}, nil, false, false, 0, emptySnapshot)
	h.Unsubscribe(sub.ID)

	h.Publish("area1", map[string]kv.Value{
		"k": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("v")), TTLMs: 1000},
	}, 0)

	select {
	case pub := <-sub.Recv():
		t.Fatalf("unsubscribed subscription should not receive publications, got %+v", pub)
	default:
	}
}

package pubsub

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/log"
)

var logger = log.Get("pubsub")

// SnapshotFunc returns the current filtered database contents for an
// area, used to build a subscription's initial publication. The
// Supervisor wires this to the owning Area's database.
type SnapshotFunc func(area kv.AreaID, filters *kv.Filters) map[string]kv.Value

// Hub is the Publisher Hub of spec.md §4.7: single-producer (the area
// loop calling Publish), many-consumer fan-out of merge deltas to
// subscriptions, each filtered, flag-projected and delivered through a
// bounded per-subscriber queue. Grounded on dKV's registry-of-clients
// shape (rpc/server/server.go keeps a concurrent map of connected
// sessions) generalized from connections to filtered subscriptions, with
// puzpuzpuz/xsync/v3 standing in for the concurrent map the way it does
// across the rest of this module.
type Hub struct {
	subs *xsync.MapOf[SubscriptionID, *Subscription]
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: xsync.NewMapOf[SubscriptionID, *Subscription]()}
}

// Subscribe registers a new subscription over areas, filtered by
// filters with the given stream flags, and immediately enqueues an
// initial snapshot publication for every selected area whose filtered
// snapshot is non-empty; an area with no matching entries gets no
// initial publication. The snapshots are pushed before the subscription
// is registered, so Publish cannot observe this subscription until
// after its snapshot has been pushed, and the snapshot precedes every
// later delta in per-area order.
func (h *Hub) Subscribe(areas []kv.AreaID, filters *kv.Filters, ignoreTTL, doNotPublishValue bool, nowMs int64, snapshot SnapshotFunc) *Subscription {
	effective := filters.WithStreamFlags(ignoreTTL, doNotPublishValue)
	sub := newSubscription(areas, effective, DefaultSubscriptionQueueCapacity)

	for area := range sub.areas {
		kvs := projectForSubscription(sub, snapshot(area, effective))
		if len(kvs) == 0 {
			continue
		}
		if !sub.queue.TryPush(Publication{Area: area, KeyVals: kvs, TimestampMs: nowMs}) {
			logger.Warnf("subscription %s overflowed on initial snapshot for area %s", sub.ID, area)
		}
	}

	h.subs.Store(sub.ID, sub)
	return sub
}

// Unsubscribe removes a subscription from the Hub. Further Publish
// calls will no longer deliver to it.
func (h *Hub) Unsubscribe(id SubscriptionID) {
	h.subs.Delete(id)
}

// Publish fans a merge delta for area out to every subscription whose
// area set includes area, per spec.md §4.7. Callers (the area command
// loop) must call Publish for successive deltas of the same area in
// merge order, since ordering here is delivery order, not sequence
// numbering.
func (h *Hub) Publish(area kv.AreaID, delta map[string]kv.Value, nowMs int64) {
	if len(delta) == 0 {
		return
	}
	h.subs.Range(func(id SubscriptionID, sub *Subscription) bool {
		if !sub.wantsArea(area) {
			return true
		}
		kvs := projectForSubscription(sub, delta)
		if len(kvs) == 0 {
			return true
		}
		if !sub.queue.TryPush(Publication{Area: area, KeyVals: kvs, TimestampMs: nowMs}) {
			h.subs.Delete(id)
			lagCancellationsCounter(area).Inc()
			sub.lagged <- kv.NewError(kv.Lagged, "subscriber queue overflow")
			close(sub.lagged)
		}
		return true
	})
}

// PublishExpired notifies every subscription whose area set includes
// area that keys have been evicted by the TTL Scheduler, per spec.md
// §4.6: "subscribers receive the removal." Each key is still checked
// against the subscription's filter, since an expired key a subscriber
// never matched is not news to it.
func (h *Hub) PublishExpired(area kv.AreaID, keys []kv.ExpiredKey, nowMs int64) {
	if len(keys) == 0 {
		return
	}
	h.subs.Range(func(id SubscriptionID, sub *Subscription) bool {
		if !sub.wantsArea(area) {
			return true
		}
		var matched []string
		for _, k := range keys {
			if sub.filters.Matches(k.Key, k.LastValue) {
				matched = append(matched, k.Key)
			}
		}
		if len(matched) == 0 {
			return true
		}
		if !sub.queue.TryPush(Publication{Area: area, ExpiredKeys: matched, TimestampMs: nowMs}) {
			h.subs.Delete(id)
			lagCancellationsCounter(area).Inc()
			sub.lagged <- kv.NewError(kv.Lagged, "subscriber queue overflow")
			close(sub.lagged)
		}
		return true
	})
}

// lagCancellationsCounter counts subscriptions the Hub has dropped for
// falling behind on area, named kvstore_subscriber_lag_cancellations_total{area="..."}.
func lagCancellationsCounter(area kv.AreaID) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`kvstore_subscriber_lag_cancellations_total{area=%q}`, area))
}

// projectForSubscription applies sub's filter and stream flags to delta,
// per spec.md §4.7: doNotPublishValue zeroes the value field,
// ignoreTtl drops value-less TTL-only entries entirely.
func projectForSubscription(sub *Subscription, delta map[string]kv.Value) map[string]kv.Value {
	out := make(map[string]kv.Value, len(delta))
	for k, v := range delta {
		if !sub.filters.Matches(k, v) {
			continue
		}
		if sub.filters.IgnoreTTL() && !v.Body.HasValue() {
			continue
		}
		if sub.filters.DoNotPublishValue() {
			v = v.WithoutValue()
		}
		out[k] = v
	}
	return out
}

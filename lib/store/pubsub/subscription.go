package pubsub

import (
	"github.com/google/uuid"

	"github.com/openr/kvstored/lib/kv"
)

// Publication is the message a subscriber receives, per spec.md §4.7:
// one per affected area per merge delta, or one per selected area for
// the initial snapshot.
type Publication struct {
	Area        kv.AreaID
	KeyVals     map[string]kv.Value
	ExpiredKeys []string
	TimestampMs int64
}

// DefaultSubscriptionQueueCapacity bounds a subscriber's backlog before
// it is declared lagged, per spec.md §4.7.
const DefaultSubscriptionQueueCapacity = 256

// SubscriptionID uniquely names a live subscription, minted with
// google/uuid the way dKV's rpc layer mints request/session identifiers.
type SubscriptionID string

// Subscription is a live stream registered with the Publisher Hub: a
// filter spec, an area set, and the ignoreTtl/doNotPublishValue flags,
// per spec.md §3.
type Subscription struct {
	ID      SubscriptionID
	areas   map[kv.AreaID]struct{}
	filters *kv.Filters
	queue   *boundedQueue[Publication]
	lagged  chan error
}

func newSubscription(areas []kv.AreaID, filters *kv.Filters, capacity int) *Subscription {
	set := make(map[kv.AreaID]struct{}, len(areas))
	for _, a := range areas {
		set[a] = struct{}{}
	}
	return &Subscription{
		ID:      SubscriptionID(uuid.NewString()),
		areas:   set,
		filters: filters,
		queue:   newBoundedQueue[Publication](capacity),
		lagged:  make(chan error, 1),
	}
}

func (s *Subscription) wantsArea(area kv.AreaID) bool {
	_, ok := s.areas[area]
	return ok
}

// Recv returns the channel of Publications delivered to this
// subscription, in per-area merge order.
func (s *Subscription) Recv() <-chan Publication {
	return s.queue.Recv()
}

// Lagged returns a channel that receives exactly one error, a
// kv.Lagged-kind error, if this subscription's queue ever overflows. The
// subscription is removed from the Hub at the same time.
func (s *Subscription) Lagged() <-chan error {
	return s.lagged
}

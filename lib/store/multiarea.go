package store

import (
	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/store/area"
	"github.com/openr/kvstored/lib/store/pubsub"
)

// MultiAreaSubscription fans a subscription out across several areas
// and merges their streams into one, per spec.md §4.8's
// subscribeAndGetAreaKvStores: "subscribe across multiple areas at
// once, receiving a merged stream of publications." Each underlying
// area.Area only knows how to serve a single-area pubsub.Subscription
// (area.go's Subscribe), so the fan-in lives here instead.
type MultiAreaSubscription struct {
	areas map[kv.AreaID]*area.Area
	subs  map[kv.AreaID]*pubsub.Subscription

	merged chan pubsub.Publication
	lagged chan error
	done   chan struct{}
}

func newMultiAreaSubscription(areas map[kv.AreaID]*area.Area, subs map[kv.AreaID]*pubsub.Subscription) *MultiAreaSubscription {
	m := &MultiAreaSubscription{
		areas:  areas,
		subs:   subs,
		merged: make(chan pubsub.Publication, 16),
		lagged: make(chan error, len(subs)),
		done:   make(chan struct{}),
	}
	for id, sub := range subs {
		go m.pump(id, sub)
	}
	return m
}

// pump forwards one area's subscription onto the merged channel until
// either the subscription ends (Lagged) or the whole subscription is
// closed.
func (m *MultiAreaSubscription) pump(id kv.AreaID, sub *pubsub.Subscription) {
	for {
		select {
		case pub, ok := <-sub.Recv():
			if !ok {
				return
			}
			select {
			case m.merged <- pub:
			case <-m.done:
				return
			}
		case err, ok := <-sub.Lagged():
			if ok {
				select {
				case m.lagged <- err:
				case <-m.done:
				}
			}
			return
		case <-m.done:
			return
		}
	}
}

// Recv returns the merged publication stream across every subscribed
// area.
func (m *MultiAreaSubscription) Recv() <-chan pubsub.Publication {
	return m.merged
}

// Lagged signals, per area, that a subscriber fell behind and was
// cancelled, per spec.md §4.7's overflow policy.
func (m *MultiAreaSubscription) Lagged() <-chan error {
	return m.lagged
}

// Close unsubscribes from every underlying area and stops the fan-in
// goroutines.
func (m *MultiAreaSubscription) Close() {
	close(m.done)
	for id, a := range m.areas {
		a.Unsubscribe(m.subs[id].ID)
	}
}

// Package area implements a single flooding domain: the Area Database,
// Peer Table, TTL-driven eviction/self-refresh, the Dual Spanning-Tree,
// and the single-threaded command loop spec.md §5 requires ("All
// mutations to an Area Database, its TTL queue, peer table, and Dual
// state happen on that area's loop... there are no locks on the hot
// path"). Grounded on dKV's adapter_istore.go message-type switch
// (rpc/server/adapter_istore.go) for the operation-dispatch shape, and
// on lib/store/dstore/statemachine.go for "one goroutine owns this
// state, everyone else posts work to it".
package area

import (
	"fmt"
	"time"

	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/log"
	"github.com/openr/kvstored/lib/store/pubsub"
	"github.com/openr/kvstored/lib/store/ttl"
)

var logger = log.Get("area")

// Config is an area's static configuration, per spec.md §6's KV
// options: syncIntervalSec, enableFloodOptimization, isFloodRoot, and
// the admission filter assembled from
// keyPrefixFilters/originatorIdFilters/filterOperator. ttlDecrementMs is
// not carried here and has no effect on an area.
type Config struct {
	ID                kv.AreaID
	SelfNodeID        string
	IsFloodRoot       bool
	FloodOptimization bool
	SyncInterval      time.Duration
	AdmissionFilter   *kv.Filters
}

// Area owns one flooding domain's state and the single goroutine that
// mutates it.
type Area struct {
	cfg Config

	db             *kv.Database
	scheduler      *ttl.Scheduler
	hub            *pubsub.Hub
	selfOriginated *SelfOriginatedTable
	dual           *Dual
	peers          map[string]*Peer
	transport      Transport
	metrics        *areaMetrics

	nowMs func() int64

	ops  chan func()
	stop chan struct{}
}

// NewArea constructs an Area and starts its command loop goroutine.
// transport may be nil for areas under test that never flood; nowMs
// defaults to the wall clock if nil.
func NewArea(cfg Config, transport Transport, nowMs func() int64) *Area {
	if nowMs == nil {
		nowMs = func() int64 { return time.Now().UnixMilli() }
	}
	a := &Area{
		cfg:            cfg,
		db:             kv.NewDatabase(),
		scheduler:      ttl.NewScheduler(),
		hub:            pubsub.NewHub(),
		selfOriginated: NewSelfOriginatedTable(),
		dual:           NewDual(cfg.SelfNodeID),
		peers:          make(map[string]*Peer),
		transport:      transport,
		metrics:        newAreaMetrics(cfg.ID),
		nowMs:          nowMs,
		ops:            make(chan func()),
		stop:           make(chan struct{}),
	}
	if cfg.IsFloodRoot {
		a.dual.BecomeRoot(cfg.SelfNodeID)
	}
	go a.run()
	return a
}

// Close stops the area's command loop. Pending commands already
// accepted are drained before shutdown.
func (a *Area) Close() {
	close(a.stop)
}

// Done returns a channel closed when the area's command loop has been
// stopped, so goroutines draining a peer's outbound queue (the
// Supervisor's forwarders) know when to stop.
func (a *Area) Done() <-chan struct{} {
	return a.stop
}

// call submits fn to the area loop and blocks for its result, the
// message-passing mechanism spec.md §5 requires in place of locks.
func call[T any](a *Area, fn func() T) T {
	result := make(chan T, 1)
	select {
	case a.ops <- func() { result <- fn() }:
		select {
		case r := <-result:
			return r
		case <-a.stop:
			select {
			case r := <-result:
				return r
			default:
				var zero T
				return zero
			}
		}
	case <-a.stop:
		var zero T
		return zero
	}
}

func (a *Area) run() {
	defer a.recoverPanic()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	a.rearmTimer(timer)

	for {
		select {
		case op := <-a.ops:
			op()
			a.rearmTimer(timer)
		case <-timer.C:
			a.onTimerFire()
			a.rearmTimer(timer)
		case <-a.stop:
			return
		}
	}
}

// recoverPanic catches a panic escaping the command loop's dispatch of
// an op or timer callback — an invariant violation per spec.md §7 — and
// wraps it as a kv.Internal error with a full stack trace before
// terminating this area's goroutine. call and Close both treat a closed
// stop as "no longer running", so callers blocked waiting on the area
// see it go away rather than hang.
func (a *Area) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	err := kv.Wrap(kv.Internal, fmt.Errorf("%v", r), "area loop panicked")
	logger.Errorf("area %s terminating on invariant violation: %+v", a.cfg.ID, err)
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
}

func (a *Area) rearmTimer(timer *time.Timer) {
	now := a.nowMs()
	next := now + 3600_000 // fall back to an hour out if nothing is scheduled

	if deadline, ok := a.scheduler.NextDeadlineMs(); ok && deadline < next {
		next = deadline
	}
	for _, p := range a.peers {
		if p.state == PeerResync && p.nextAttempt.UnixMilli() < next {
			next = p.nextAttempt.UnixMilli()
		}
	}

	delay := time.Duration(next-now) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	timer.Reset(delay)
}

// onTimerFire runs the TTL Scheduler's due entries (eviction or
// self-refresh) per spec.md §4.6. It is only ever invoked from run(),
// the area's single owning goroutine.
func (a *Area) onTimerFire() {
	now := a.nowMs()

	var expired []kv.ExpiredKey
	for _, due := range a.scheduler.PopDue(now) {
		v, ok := a.db.Evict(due.Key, due.Version, due.OriginatorID, due.TTLVersion)
		if !ok {
			continue // stale heap record, the key has since moved on
		}
		a.selfOriginated.Forget(due.Key)
		expired = append(expired, kv.ExpiredKey{Key: due.Key, LastValue: v})
	}
	if len(expired) > 0 {
		a.metrics.ttlEvictions.Add(len(expired))
		a.hub.PublishExpired(a.cfg.ID, expired, now)
	}

	a.refreshSelfOriginated(now)
}

// refreshSelfOriginated bumps and re-floods any locally-originated key
// whose ttl has crossed the refresh threshold, per spec.md §4.6: "this
// is the only mechanism that keeps local state alive across the
// domain."
func (a *Area) refreshSelfOriginated(now int64) {
	for _, cand := range a.selfOriginated.DueForRefresh(a.db) {
		cur, ok := a.db.Get(cand.Key)
		if !ok {
			continue
		}
		refreshed := cur
		refreshed.TTLVersion = cand.NewTTLVersion
		refreshed.TTLMs = cand.FullTTLMs

		a.applyLocalMerge(map[string]kv.Value{cand.Key: refreshed}, now)
	}
}

// SetKeyVals merges incoming as if from a local source and floods the
// resulting delta, per spec.md §4.8's setKeyVals. Keys accepted this
// way are recorded in the Self-Originated Table for future refresh.
func (a *Area) SetKeyVals(incoming map[string]kv.Value) map[string]kv.Value {
	return call(a, func() map[string]kv.Value {
		now := a.nowMs()
		delta := a.applyLocalMerge(incoming, now)
		for key, v := range delta {
			a.selfOriginated.Record(key, v.Version, v.TTLVersion, v.TTLMs)
		}
		return delta
	})
}

// applyLocalMerge merges incoming with no source peer (split-horizon
// has nothing to exclude) and floods to every peer. Must run on the
// area loop.
func (a *Area) applyLocalMerge(incoming map[string]kv.Value, now int64) map[string]kv.Value {
	delta, _, deadlines := a.db.Merge(incoming, a.cfg.AdmissionFilter)
	for _, d := range deadlines {
		a.scheduler.Schedule(d.Key, d.Version, d.OriginatorID, d.TTLVersion, now, d.TTLMs)
	}
	if len(delta) == 0 {
		return delta
	}
	a.metrics.mergeDeltas.Add(len(delta))
	a.hub.Publish(a.cfg.ID, delta, now)
	floodRootID := ""
	if a.cfg.IsFloodRoot {
		floodRootID = a.cfg.SelfNodeID
	}
	publishIncremental(a.peers, "", a.cfg.FloodOptimization, a.dual, Publication{
		Area:        a.cfg.ID,
		KeyVals:     delta,
		FloodRootID: floodRootID,
		TimestampMs: now,
	}, a.cfg.SelfNodeID, now)
	return delta
}

// ReceivePublication merges an incoming peer publication, floods the
// resulting delta onward (split-horizon excludes peerName), and
// notifies subscribers, per spec.md §2's data-flow description for
// incoming peer publications.
func (a *Area) ReceivePublication(peerName string, pub Publication) {
	call(a, func() struct{} {
		now := a.nowMs()
		delta, _, deadlines := a.db.Merge(pub.KeyVals, a.cfg.AdmissionFilter)
		for _, d := range deadlines {
			a.scheduler.Schedule(d.Key, d.Version, d.OriginatorID, d.TTLVersion, now, d.TTLMs)
		}
		if len(delta) == 0 {
			return struct{}{}
		}
		a.metrics.mergeDeltas.Add(len(delta))
		a.hub.Publish(a.cfg.ID, delta, now)
		publishIncremental(a.peers, peerName, a.cfg.FloodOptimization, a.dual, Publication{
			Area:        a.cfg.ID,
			KeyVals:     delta,
			NodeIDs:     pub.NodeIDs,
			FloodRootID: pub.FloodRootID,
			TimestampMs: now,
		}, a.cfg.SelfNodeID, now)
		return struct{}{}
	})
}

// GetKeyVals returns the subset of keys present in the database, per
// spec.md §4.8's getKeyVals.
func (a *Area) GetKeyVals(keys []string) map[string]kv.Value {
	return call(a, func() map[string]kv.Value {
		out := make(map[string]kv.Value, len(keys))
		for _, k := range keys {
			if v, ok := a.db.Get(k); ok {
				out[k] = v
			}
		}
		return out
	})
}

// DumpKeyVals returns a full filtered dump, per spec.md §4.8's
// dumpKeyVals.
func (a *Area) DumpKeyVals(filter *kv.Filters) map[string]kv.Value {
	return call(a, func() map[string]kv.Value { return a.db.Snapshot(filter) })
}

// DumpHashes returns a filtered dump with values omitted, per spec.md
// §4.8's dumpHashes.
func (a *Area) DumpHashes(filter *kv.Filters) map[string]kv.Value {
	return call(a, func() map[string]kv.Value { return a.db.Hashes(filter) })
}

// GetPeers returns the names of every configured peer, per spec.md
// §4.8's getPeers.
func (a *Area) GetPeers() []string {
	return call(a, func() []string {
		names := make([]string, 0, len(a.peers))
		for name := range a.peers {
			names = append(names, name)
		}
		return names
	})
}

// AddPeer registers a new peer in the idle state, per spec.md §4.8's
// addPeer.
func (a *Area) AddPeer(name string) {
	call(a, func() struct{} {
		if _, exists := a.peers[name]; !exists {
			a.peers[name] = NewPeer(name)
		}
		return struct{}{}
	})
}

// DelPeer removes a peer, per spec.md §4.8's delPeer.
func (a *Area) DelPeer(name string) {
	call(a, func() struct{} {
		delete(a.peers, name)
		return struct{}{}
	})
}

// ProcessDualMessage feeds an incoming Dual message into the spanning
// tree state, per spec.md §4.8's processDualMessage.
func (a *Area) ProcessDualMessage(msg DualMessage) (changed bool) {
	return call(a, func() bool { return a.dual.ProcessMessage(msg) })
}

// UpdateFloodTopologyChild applies a manual spanning-tree child hint,
// per spec.md §4.8's updateFloodTopologyChild.
func (a *Area) UpdateFloodTopologyChild(rootID, peerName string, isChild bool) {
	call(a, func() struct{} {
		a.dual.UpdateChild(rootID, peerName, isChild)
		return struct{}{}
	})
}

// GetSpanningTreeInfos returns the current SPT diagnostic dump, per
// spec.md §4.5 and §4.8's getSpanningTreeInfos.
func (a *Area) GetSpanningTreeInfos() []SpanningTreeInfo {
	return call(a, func() []SpanningTreeInfo { return a.dual.Dump() })
}

// Subscribe registers a new subscription scoped to this area, per
// spec.md §4.8's subscribeAndGetAreaKvStores (single-area half; the
// multi-area fan-out lives in the Store Supervisor).
func (a *Area) Subscribe(filter *kv.Filters, ignoreTTL, doNotPublishValue bool) *pubsub.Subscription {
	return call(a, func() *pubsub.Subscription {
		now := a.nowMs()
		return a.hub.Subscribe([]kv.AreaID{a.cfg.ID}, filter, ignoreTTL, doNotPublishValue, now, func(_ kv.AreaID, f *kv.Filters) map[string]kv.Value {
			return a.db.Snapshot(f)
		})
	})
}

// Unsubscribe removes a subscription previously returned by Subscribe.
func (a *Area) Unsubscribe(id pubsub.SubscriptionID) {
	call(a, func() struct{} {
		a.hub.Unsubscribe(id)
		return struct{}{}
	})
}

// FullSync runs spec.md §4.4's full-sync protocol against peerName:
// request a hash dump, compute the symmetric difference, request the
// keys where the peer is ahead, and push the keys where the local
// database is ahead. It transitions the peer through
// syncing -> established (on success) or resync (on failure/timeout).
func (a *Area) FullSync(peerName string) error {
	type syncStart struct {
		peer     *Peer
		filter   *kv.Filters
		snapshot map[string]kv.Value
		ok       bool
	}
	start := call(a, func() syncStart {
		p, exists := a.peers[peerName]
		if !exists {
			return syncStart{}
		}
		p.MarkSyncing()
		return syncStart{peer: p, filter: a.cfg.AdmissionFilter, snapshot: a.db.Snapshot(nil), ok: true}
	})
	if !start.ok {
		return kv.NewError(kv.InvalidArgument, "unknown peer: "+peerName)
	}
	p, filter, localSnapshot := start.peer, start.filter, start.snapshot

	peerHashes, err := a.transport.RequestHashes(peerName, filter)
	if err != nil {
		call(a, func() struct{} { p.MarkResync(a.nowMs()); return struct{}{} })
		return kv.Wrap(kv.PeerUnreachable, err, "full sync: request hashes")
	}

	diff := call(a, func() SyncDiff { return computeSyncDiff(a.db, localSnapshot, peerHashes) })

	if len(diff.NeedFromPeer) > 0 {
		values, err := a.transport.RequestValues(peerName, diff.NeedFromPeer)
		if err != nil {
			call(a, func() struct{} { p.MarkResync(a.nowMs()); return struct{}{} })
			return kv.Wrap(kv.PeerUnreachable, err, "full sync: request values")
		}
		a.ReceivePublication(peerName, Publication{Area: a.cfg.ID, KeyVals: values, TimestampMs: a.nowMs()})
	}

	if len(diff.PushToPeer) > 0 {
		if err := a.transport.PushValues(peerName, diff.PushToPeer); err != nil {
			call(a, func() struct{} { p.MarkResync(a.nowMs()); return struct{}{} })
			return kv.Wrap(kv.PeerUnreachable, err, "full sync: push values")
		}
	}

	call(a, func() struct{} { p.MarkEstablished(); return struct{}{} })
	a.metrics.peerResyncs.Inc()
	return nil
}

// peerOutboundResult is the return shape of PeerOutbound's area-loop
// closure; named so call's generic instantiation stays readable.
type peerOutboundResult struct {
	ch <-chan Publication
	ok bool
}

// PeerOutbound returns the named peer's outbound channel for tests and
// in-process transports that drain it directly, plus whether the peer
// exists.
func (a *Area) PeerOutbound(name string) (<-chan Publication, bool) {
	result := call(a, func() peerOutboundResult {
		p, ok := a.peers[name]
		if !ok {
			return peerOutboundResult{}
		}
		return peerOutboundResult{ch: p.Outbound(), ok: true}
	})
	return result.ch, result.ok
}

// PeersDueForResync returns the names of peers whose backoff window has
// elapsed and are ready for FullSync to be retried, per spec.md §4.4's
// backpressure policy.
func (a *Area) PeersDueForResync() []string {
	return call(a, func() []string {
		now := a.nowMs()
		var due []string
		for name, p := range a.peers {
			if p.ReadyForResync(now) {
				due = append(due, name)
			}
		}
		return due
	})
}

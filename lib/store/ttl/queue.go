// Package ttl implements the per-area TTL Scheduler described in
// spec.md §4.6: a min-heap of pending deadlines plus a single timer
// firing on the earliest one, driving both eviction of expired entries
// and self-refresh of locally-originated ones.
package ttl

import "container/heap"

// entryID identifies one generation of a stored key: a (version,
// originator, ttlVersion) triple. A heap record is only actionable if
// it still matches the database's current generation for that key — any
// merge that changes version, originator or ttlVersion invalidates
// older heap records for the same key, which is detected by comparing
// entryID rather than by eagerly removing stale records (mirroring
// dKV's MapHeap.AddItem upsert-by-key semantics, lib/db/util/mapheap.go).
type entryID struct {
	Key          string
	Version      uint64
	OriginatorID string
	TTLVersion   uint64
}

// heapItem is one scheduled deadline, modeled on dKV's MapHeap item
// (lib/db/util/mapheap.go) but keyed by entryID instead of a bare
// uint64, and carrying a deadline in milliseconds instead of an opaque
// priority.
type heapItem struct {
	id         entryID
	deadlineMs int64
	index      int
}

// Queue is a min-heap of pending deadlines keyed by entryID, giving
// O(log n) scheduling and O(1) membership checks, grounded on dKV's
// MapHeap (lib/db/util/mapheap.go) generalized from a single uint64 key
// to the (key, version, originator, ttlVersion) tuple this scheduler
// needs to detect stale records.
type Queue struct {
	items []*heapItem
	byID  map[entryID]*heapItem
}

// NewQueue constructs an empty Queue.
func NewQueue() *Queue {
	return &Queue{byID: make(map[entryID]*heapItem)}
}

func (q *Queue) Len() int { return len(q.items) }

func (q *Queue) Less(i, j int) bool { return q.items[i].deadlineMs < q.items[j].deadlineMs }

func (q *Queue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *Queue) Push(x any) {
	it := x.(*heapItem)
	it.index = len(q.items)
	q.items = append(q.items, it)
	q.byID[it.id] = it
}

func (q *Queue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	q.items = old[:n-1]
	delete(q.byID, it.id)
	return it
}

// Schedule registers or reschedules the deadline for (key, version,
// originatorID, ttlVersion). A prior record for a *different*
// generation of the same key (different version/ttlVersion) is left in
// place to be discovered as stale when it eventually fires — spec.md
// §4.6 resolves staleness by comparing the heap record against the live
// database at fire time, not by eager invalidation.
func (q *Queue) Schedule(key string, version uint64, originatorID string, ttlVersion uint64, deadlineMs int64) {
	id := entryID{Key: key, Version: version, OriginatorID: originatorID, TTLVersion: ttlVersion}
	if it, ok := q.byID[id]; ok {
		it.deadlineMs = deadlineMs
		heap.Fix(q, it.index)
		return
	}
	heap.Push(q, &heapItem{id: id, deadlineMs: deadlineMs})
}

// Due is the information returned by Peek/PopDue about the earliest
// scheduled generation.
type Due struct {
	Key          string
	Version      uint64
	OriginatorID string
	TTLVersion   uint64
	DeadlineMs   int64
}

// Peek returns the earliest deadline without removing it.
func (q *Queue) Peek() (Due, bool) {
	if len(q.items) == 0 {
		return Due{}, false
	}
	return toDue(q.items[0]), true
}

// PopDue removes and returns the earliest deadline.
func (q *Queue) PopDue() (Due, bool) {
	if len(q.items) == 0 {
		return Due{}, false
	}
	it := heap.Pop(q).(*heapItem)
	return toDue(it), true
}

func toDue(it *heapItem) Due {
	return Due{
		Key:          it.id.Key,
		Version:      it.id.Version,
		OriginatorID: it.id.OriginatorID,
		TTLVersion:   it.id.TTLVersion,
		DeadlineMs:   it.deadlineMs,
	}
}

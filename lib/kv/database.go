package kv

// KTtlThreshold is the minimum ttl (in milliseconds) a stored entry may
// carry. A value at or below this threshold is treated as already
// expired, per spec.md §3 invariant 2 and §4.3 step 2.
const KTtlThreshold int64 = 0

// NoMergeReason classifies why an incoming (key, Value) pair did not
// produce a delta entry. This supplements Open/R's aggregate-only
// KvStoreNoMergeReasonStats (original_source/openr/kvstore/KvStoreUtil.h)
// with a per-key reason, per SPEC_FULL.md §11.
type NoMergeReason int

const (
	// NoMatchedKey — the key did not pass the caller-supplied filter.
	NoMatchedKey NoMergeReason = iota
	// InvalidTTL — the incoming value's ttl was at or below the threshold.
	InvalidTTL
	// OldVersion — the stored value won the Arbiter comparison.
	OldVersion
	// NoNeedToUpdate — absent-key hash-only/ttl-only, or an equal value
	// with no newer ttlVersion.
	NoNeedToUpdate
)

func (r NoMergeReason) String() string {
	switch r {
	case NoMatchedKey:
		return "NoMatchedKey"
	case InvalidTTL:
		return "InvalidTTL"
	case OldVersion:
		return "OldVersion"
	case NoNeedToUpdate:
		return "NoNeedToUpdate"
	default:
		return "Unknown"
	}
}

// MergeStats reports, per key, why an incoming value did not produce a
// delta entry. Keys absent from Reasons were merged and appear in the
// delta returned alongside MergeStats.
type MergeStats struct {
	Reasons map[string]NoMergeReason
}

func newMergeStats() MergeStats {
	return MergeStats{Reasons: make(map[string]NoMergeReason)}
}

func (s *MergeStats) reject(key string, reason NoMergeReason) {
	s.Reasons[key] = reason
}

// CountByReason aggregates Reasons into the four Open/R-shaped buckets,
// for callers that only want the summary counters.
func (s MergeStats) CountByReason() map[NoMergeReason]int {
	out := make(map[NoMergeReason]int, 4)
	for _, r := range s.Reasons {
		out[r]++
	}
	return out
}

// Database holds the replicated keyspace of a single area. It is not
// safe for concurrent use: per spec.md §5, an area's database is only
// ever touched by that area's own command loop goroutine, so Database
// carries no internal locking — unlike dKV's maple engine, which shards
// by key to support concurrent callers (lib/db/engines/maple/maple.go).
// A single map suffices here because the sharding axis in this system
// is the area, not the key.
type Database struct {
	entries map[string]Value
}

// NewDatabase constructs an empty Database.
func NewDatabase() *Database {
	return &Database{entries: make(map[string]Value)}
}

// Get returns the current value for key, if present.
func (d *Database) Get(key string) (Value, bool) {
	v, ok := d.entries[key]
	return v, ok
}

// Snapshot returns a shallow copy of every (key, Value) passing filter.
// A nil filter returns the whole database.
func (d *Database) Snapshot(filter *Filters) map[string]Value {
	out := make(map[string]Value, len(d.entries))
	for k, v := range d.entries {
		if filter.Matches(k, v) {
			out[k] = v
		}
	}
	return out
}

// Hashes returns, for every key passing filter, the Value projected to
// its HashOnly form, for hash-dump responses and full-sync diffing
// (spec.md §4.4).
func (d *Database) Hashes(filter *Filters) map[string]Value {
	out := make(map[string]Value, len(d.entries))
	for k, v := range d.entries {
		if filter.Matches(k, v) {
			out[k] = v.WithoutValue()
		}
	}
	return out
}

// DeadlineRegistration is emitted by Merge for every key it changed, so
// the caller can reschedule that key's entry in the TTL Scheduler
// (spec.md §4.3 step 6). The scheduler itself lives in lib/store/ttl and
// is deliberately not imported here to keep this package I/O-free.
type DeadlineRegistration struct {
	Key          string
	Version      uint64
	OriginatorID string
	TTLVersion   uint64
	TTLMs        int64
}

// Merge implements the Area Database merge protocol of spec.md §4.3: the
// single entry point for admitting both locally-originated writes and
// incoming peer publications. It returns the subset of incoming that was
// actually applied (the delta — the source of truth for flooding and for
// notifying the Publisher Hub), the per-key rejection reasons, and the
// TTL Scheduler deadlines that must be (re)registered for changed keys.
func (d *Database) Merge(incoming map[string]Value, filter *Filters) (delta map[string]Value, stats MergeStats, deadlines []DeadlineRegistration) {
	delta = make(map[string]Value)
	stats = newMergeStats()

	for key, v := range incoming {
		// Step 1: filter.
		if !filter.Matches(key, v) {
			stats.reject(key, NoMatchedKey)
			continue
		}
		// Step 2: ttl floor.
		if v.TTLMs <= KTtlThreshold {
			stats.reject(key, InvalidTTL)
			continue
		}

		cur, exists := d.entries[key]

		// Step 4: absent key.
		if !exists {
			if !v.Body.HasValue() {
				stats.reject(key, NoNeedToUpdate)
				continue
			}
			d.entries[key] = v
			delta[key] = v
			deadlines = append(deadlines, deadlineFor(key, v))
			continue
		}

		// Step 5: present key, arbitrate. Same version and originator with
		// the same value (or no value at all) is the same entry, so only
		// ttlVersion can still refresh it.
		outcome := Compare(v, cur)
		if v.Version == cur.Version && v.OriginatorID == cur.OriginatorID &&
			(v.Body.Kind == BodyTTLOnly || v.Hash() == cur.Hash()) {
			outcome = Equal
		}
		switch outcome {
		case AWins:
			// A value-less body never overwrites a stored value.
			if !v.Body.HasValue() {
				stats.reject(key, NoNeedToUpdate)
				continue
			}
			d.entries[key] = v
			delta[key] = v
			deadlines = append(deadlines, deadlineFor(key, v))
		case BWins:
			stats.reject(key, OldVersion)
		case Equal:
			if v.TTLVersion > cur.TTLVersion {
				updated := cur
				updated.TTLMs = v.TTLMs
				updated.TTLVersion = v.TTLVersion
				d.entries[key] = updated
				delta[key] = updated.ToTTLOnly()
				deadlines = append(deadlines, deadlineFor(key, updated))
			} else {
				stats.reject(key, NoNeedToUpdate)
			}
		case Unknown:
			// cur is left untouched; the caller is expected to issue a
			// targeted dump to resolve the hash-vs-full ambiguity.
		}
	}

	return delta, stats, deadlines
}

// Evict removes key only if its stored Value still has the given
// version, originatorID and ttlVersion, used by the TTL Scheduler when an
// entry's heap record fires (spec.md §4.6); a newer generation is left in
// place. It returns the removed Value and whether the key was removed.
func (d *Database) Evict(key string, version uint64, originatorID string, ttlVersion uint64) (Value, bool) {
	cur, ok := d.entries[key]
	if !ok {
		return Value{}, false
	}
	if cur.Version != version || cur.OriginatorID != originatorID || cur.TTLVersion != ttlVersion {
		return Value{}, false
	}
	delete(d.entries, key)
	return cur, true
}

func deadlineFor(key string, v Value) DeadlineRegistration {
	return DeadlineRegistration{
		Key:          key,
		Version:      v.Version,
		OriginatorID: v.OriginatorID,
		TTLVersion:   v.TTLVersion,
		TTLMs:        v.TTLMs,
	}
}

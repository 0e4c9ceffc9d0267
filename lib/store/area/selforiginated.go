package area

import (
	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/store/ttl"
)

// selfOriginatedEntry records the full ttl window a locally-originated
// key was last (re)published with, so the refresh check in Tick can
// compare "ttl remaining" against "ttl at last publish" rather than an
// arbitrary constant, per spec.md §4.6: "when remaining ttl falls below
// ttl × kRefreshFactor".
type selfOriginatedEntry struct {
	version    uint64
	ttlVersion uint64
	fullTTLMs  int64
}

// SelfOriginatedTable records this node's own keys for TTL refresh and
// version bumping, per spec.md §3's Area field of the same name. Unlike
// the Area Database it is not a replicated structure — entries are
// added only by this node's own SetKeyVals calls, never by merges from
// peers.
type SelfOriginatedTable struct {
	entries map[string]selfOriginatedEntry
}

// NewSelfOriginatedTable constructs an empty table.
func NewSelfOriginatedTable() *SelfOriginatedTable {
	return &SelfOriginatedTable{entries: make(map[string]selfOriginatedEntry)}
}

// Record notes that key was just (re)published at version/ttlVersion
// with a full ttl window of fullTTLMs.
func (t *SelfOriginatedTable) Record(key string, version, ttlVersion uint64, fullTTLMs int64) {
	t.entries[key] = selfOriginatedEntry{version: version, ttlVersion: ttlVersion, fullTTLMs: fullTTLMs}
}

// Forget removes key, used when ownership of a key moves elsewhere
// (another originator's higher version displaced it).
func (t *SelfOriginatedTable) Forget(key string) {
	delete(t.entries, key)
}

// RefreshCandidate is a key due for self-refresh, bundling what
// Area.refreshSelfOriginated needs to build the bumped Value.
type RefreshCandidate struct {
	Key           string
	Version       uint64
	NewTTLVersion uint64
	FullTTLMs     int64
}

// DueForRefresh compares every recorded key's live database entry
// against the refresh threshold and returns the ones that need
// bumping. A key is skipped if the live database no longer matches the
// recorded generation (it was since evicted or superseded) or the
// remaining ttl has not yet crossed kRefreshFactor.
func (t *SelfOriginatedTable) DueForRefresh(db *kv.Database) []RefreshCandidate {
	var due []RefreshCandidate
	for key, rec := range t.entries {
		cur, ok := db.Get(key)
		if !ok || cur.Version != rec.version || cur.TTLVersion != rec.ttlVersion {
			continue
		}
		if ttl.ShouldRefresh(cur.TTLMs, rec.fullTTLMs) {
			due = append(due, RefreshCandidate{
				Key:           key,
				Version:       cur.Version,
				NewTTLVersion: rec.ttlVersion + 1,
				FullTTLMs:     rec.fullTTLMs,
			})
		}
	}
	return due
}

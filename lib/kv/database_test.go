package kv

import (
	"bytes"
	"testing"
	"testing/quick"
)

func TestMergeAcceptsNewKeyWithValue(t *testing.T) {
	db := NewDatabase()
	v := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLMs: 1000}

	delta, stats, deadlines := db.Merge(map[string]Value{"k": v}, nil)

	if _, ok := delta["k"]; !ok {
		t.Fatal("expected k in delta")
	}
	if len(stats.Reasons) != 0 {
		t.Errorf("unexpected rejections: %v", stats.Reasons)
	}
	if len(deadlines) != 1 || deadlines[0].Key != "k" {
		t.Errorf("expected one deadline for k, got %v", deadlines)
	}
	if got, _ := db.Get("k"); got.Body.Kind != BodyFull {
		t.Errorf("stored value should be Full, got %v", got.Body.Kind)
	}
}

func TestMergeRejectsNewKeyWithoutValue(t *testing.T) {
	db := NewDatabase()
	v := Value{Version: 1, OriginatorID: "a", Body: HashOnlyBody(7), TTLMs: 1000}

	delta, stats, _ := db.Merge(map[string]Value{"k": v}, nil)

	if _, ok := delta["k"]; ok {
		t.Fatal("hash-only body must not create a new key")
	}
	if stats.Reasons["k"] != NoNeedToUpdate {
		t.Errorf("reason = %v, want NoNeedToUpdate", stats.Reasons["k"])
	}
}

func TestMergeRejectsInvalidTTL(t *testing.T) {
	db := NewDatabase()
	v := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLMs: KTtlThreshold}

	delta, stats, _ := db.Merge(map[string]Value{"k": v}, nil)

	if _, ok := delta["k"]; ok {
		t.Fatal("ttl at threshold must be rejected")
	}
	if stats.Reasons["k"] != InvalidTTL {
		t.Errorf("reason = %v, want InvalidTTL", stats.Reasons["k"])
	}
}

func TestMergeFilterRejection(t *testing.T) {
	db := NewDatabase()
	filter, err := NewFilters([]string{"adj:"}, nil, OperatorOR)
	if err != nil {
		t.Fatalf("NewFilters() error = %v", err)
	}
	v := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLMs: 1000}

	delta, stats, _ := db.Merge(map[string]Value{"prefix:k": v}, filter)

	if _, ok := delta["prefix:k"]; ok {
		t.Fatal("key not matching filter must be rejected")
	}
	if stats.Reasons["prefix:k"] != NoMatchedKey {
		t.Errorf("reason = %v, want NoMatchedKey", stats.Reasons["prefix:k"])
	}
}

func TestMergeReplacesOnHigherVersion(t *testing.T) {
	db := NewDatabase()
	old := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLMs: 1000}
	db.Merge(map[string]Value{"k": old}, nil)

	newer := Value{Version: 2, OriginatorID: "a", Body: FullBody([]byte("y")), TTLMs: 1000}
	delta, stats, _ := db.Merge(map[string]Value{"k": newer}, nil)

	if got, ok := delta["k"]; !ok || string(got.Body.Bytes) != "y" {
		t.Fatalf("expected delta to carry newer value, got %+v", delta["k"])
	}
	if len(stats.Reasons) != 0 {
		t.Errorf("unexpected rejections: %v", stats.Reasons)
	}
}

func TestMergeDropsOnOldVersion(t *testing.T) {
	db := NewDatabase()
	newer := Value{Version: 2, OriginatorID: "a", Body: FullBody([]byte("y")), TTLMs: 1000}
	db.Merge(map[string]Value{"k": newer}, nil)

	older := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLMs: 1000}
	delta, stats, _ := db.Merge(map[string]Value{"k": older}, nil)

	if _, ok := delta["k"]; ok {
		t.Fatal("older version must not produce a delta")
	}
	if stats.Reasons["k"] != OldVersion {
		t.Errorf("reason = %v, want OldVersion", stats.Reasons["k"])
	}
	if got, _ := db.Get("k"); got.Version != 2 {
		t.Errorf("stored version should remain 2, got %d", got.Version)
	}
}

func TestMergeEqualWithHigherTtlVersionUpdatesTtlOnly(t *testing.T) {
	db := NewDatabase()
	v := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLMs: 1000, TTLVersion: 1}
	db.Merge(map[string]Value{"k": v}, nil)

	refresh := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLMs: 2000, TTLVersion: 2}
	delta, stats, deadlines := db.Merge(map[string]Value{"k": refresh}, nil)

	got, ok := delta["k"]
	if !ok {
		t.Fatal("expected ttl-only delta entry")
	}
	if got.Body.HasValue() {
		t.Error("ttl-only delta must not carry a value")
	}
	if len(stats.Reasons) != 0 {
		t.Errorf("unexpected rejections: %v", stats.Reasons)
	}
	if len(deadlines) != 1 || deadlines[0].TTLMs != 2000 {
		t.Errorf("expected deadline refreshed to 2000ms, got %v", deadlines)
	}

	stored, _ := db.Get("k")
	if !stored.Body.HasValue() || string(stored.Body.Bytes) != "x" {
		t.Error("stored value must keep its original payload across a ttl-only update")
	}
}

func TestMergeEqualWithoutNewerTtlVersionIsNoOp(t *testing.T) {
	db := NewDatabase()
	v := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLMs: 1000, TTLVersion: 2}
	db.Merge(map[string]Value{"k": v}, nil)

	stale := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLMs: 1000, TTLVersion: 1}
	delta, stats, _ := db.Merge(map[string]Value{"k": stale}, nil)

	if _, ok := delta["k"]; ok {
		t.Fatal("stale ttlVersion must not produce a delta")
	}
	if stats.Reasons["k"] != NoNeedToUpdate {
		t.Errorf("reason = %v, want NoNeedToUpdate", stats.Reasons["k"])
	}
}

func TestMergeUnknownLeavesCurrentUntouched(t *testing.T) {
	db := NewDatabase()
	full := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLMs: 1000}
	db.Merge(map[string]Value{"k": full}, nil)

	hashOnlyHigher := Value{Version: 2, OriginatorID: "a", Body: HashOnlyBody(999), TTLMs: 1000}
	delta, stats, deadlines := db.Merge(map[string]Value{"k": hashOnlyHigher}, nil)

	if _, ok := delta["k"]; ok {
		t.Fatal("Unknown outcome must not produce a delta")
	}
	if _, rejected := stats.Reasons["k"]; rejected {
		t.Errorf("Unknown outcome is not a rejection reason, got %v", stats.Reasons["k"])
	}
	if len(deadlines) != 0 {
		t.Errorf("Unknown outcome must not register a deadline, got %v", deadlines)
	}
	if got, _ := db.Get("k"); got.Version != 1 {
		t.Errorf("current value must be left untouched, got version %d", got.Version)
	}
}

func TestEvictOnlyRemovesMatchingGeneration(t *testing.T) {
	db := NewDatabase()
	v := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLMs: 1000, TTLVersion: 1}
	db.Merge(map[string]Value{"k": v}, nil)

	if _, ok := db.Evict("k", 1, "a", 0); ok {
		t.Fatal("stale heap record (wrong ttlVersion) must not evict")
	}
	if _, ok := db.Get("k"); !ok {
		t.Fatal("key must still be present after a stale evict attempt")
	}

	if _, ok := db.Evict("k", 1, "a", 1); !ok {
		t.Fatal("matching heap record must evict")
	}
	if _, ok := db.Get("k"); ok {
		t.Fatal("key must be gone after a matching evict")
	}
}

// normalizeTTL folds an arbitrary int64 into a valid ttl, strictly
// above KTtlThreshold, so quick-generated batches aren't rejected by
// Merge's InvalidTTL check before ever reaching the Arbiter.
func normalizeTTL(seed int64) int64 {
	if seed < 0 {
		seed = -seed
	}
	return KTtlThreshold + 1 + seed%1_000_000
}

// TestMergeIsIdempotent is the property-based check for spec.md §8's
// "merge idempotence": re-merging the exact same batch into a database
// that already reflects it must produce an empty delta, since nothing
// about the stored generation has changed.
func TestMergeIsIdempotent(t *testing.T) {
	f := func(originator string, payload []byte, ttlSeed int64) bool {
		batch := map[string]Value{
			"k": {Version: 1, OriginatorID: originator, Body: FullBody(payload), TTLMs: normalizeTTL(ttlSeed)},
		}

		db := NewDatabase()
		db.Merge(batch, nil)
		delta, _, _ := db.Merge(batch, nil)

		return len(delta) == 0
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

// TestMergeIsCommutative is the property-based check for spec.md §8's
// "merge commutativity under Arbiter": merging batch A then B must
// leave the database in the same state as merging B then A, since each
// key's final winner is decided by Compare alone, not arrival order.
// Both batches stick to full-bodied values so every pairwise Compare is
// decisive (Full vs Full never resolves Unknown), which the commutative
// property depends on.
func TestMergeIsCommutative(t *testing.T) {
	f := func(origA, origB string, payloadA, payloadB []byte, versionA, versionB uint64, ttlSeedA, ttlSeedB int64) bool {
		a := map[string]Value{
			"k": {Version: versionA, OriginatorID: origA, Body: FullBody(payloadA), TTLMs: normalizeTTL(ttlSeedA)},
		}
		b := map[string]Value{
			"k": {Version: versionB, OriginatorID: origB, Body: FullBody(payloadB), TTLMs: normalizeTTL(ttlSeedB)},
		}

		dbAB := NewDatabase()
		dbAB.Merge(a, nil)
		dbAB.Merge(b, nil)

		dbBA := NewDatabase()
		dbBA.Merge(b, nil)
		dbBA.Merge(a, nil)

		gotAB, okAB := dbAB.Get("k")
		gotBA, okBA := dbBA.Get("k")
		if okAB != okBA {
			return false
		}
		return gotAB.Version == gotBA.Version &&
			gotAB.OriginatorID == gotBA.OriginatorID &&
			gotAB.TTLVersion == gotBA.TTLVersion &&
			bytes.Equal(gotAB.Body.Bytes, gotBA.Body.Bytes)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

package kv

import (
	"testing"
	"testing/quick"
)

// TestCompareVersion tests the version-differs branch of Compare.
func TestCompareVersion(t *testing.T) {
	lo := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x"))}
	hi := Value{Version: 2, OriginatorID: "a", Body: FullBody([]byte("y"))}

	if got := Compare(hi, lo); got != AWins {
		t.Errorf("Compare(hi, lo) = %v, want AWins", got)
	}
	if got := Compare(lo, hi); got != BWins {
		t.Errorf("Compare(lo, hi) = %v, want BWins", got)
	}
}

// TestCompareHashOnlyNeverBeatsFull verifies the preserved quirk: a
// HashOnly body at a higher version cannot outrank a Full body at a
// lower version.
func TestCompareHashOnlyNeverBeatsFull(t *testing.T) {
	lowFull := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x"))}
	hiHashOnly := Value{Version: 2, OriginatorID: "a", Body: HashOnlyBody(42)}

	if got := Compare(hiHashOnly, lowFull); got != Unknown {
		t.Errorf("Compare(hiHashOnly, lowFull) = %v, want Unknown", got)
	}
	if got := Compare(lowFull, hiHashOnly); got != Unknown {
		t.Errorf("Compare(lowFull, hiHashOnly) = %v, want Unknown", got)
	}
}

// TestCompareSameVersionTiebreak walks the originatorId -> bytes ->
// ttlVersion tiebreak order at equal version.
func TestCompareSameVersionTiebreak(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want Outcome
	}{
		{
			name: "originator breaks tie",
			a:    Value{Version: 1, OriginatorID: "b", Body: FullBody([]byte("x"))},
			b:    Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x"))},
			want: AWins,
		},
		{
			name: "bytes break tie when originator equal",
			a:    Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("y"))},
			b:    Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x"))},
			want: AWins,
		},
		{
			name: "ttlVersion breaks tie when originator and bytes equal",
			a:    Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLVersion: 2},
			b:    Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLVersion: 1},
			want: AWins,
		},
		{
			name: "fully equal",
			a:    Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLVersion: 1},
			b:    Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x")), TTLVersion: 1},
			want: Equal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCompareUnknownOnHashVsFullSameVersion verifies that, at equal
// version, a hash-only value can only ever resolve to Equal (exact hash
// match) or Unknown against a full value — never a decisive win.
func TestCompareUnknownOnHashVsFullSameVersion(t *testing.T) {
	full := Value{Version: 1, OriginatorID: "a", Body: FullBody([]byte("x"))}
	hashOnly := Value{Version: 1, OriginatorID: "a", Body: HashOnlyBody(full.Hash() + 1)}

	if got := Compare(full, hashOnly); got != Unknown {
		t.Errorf("Compare(full, mismatchedHash) = %v, want Unknown", got)
	}

	matching := Value{Version: 1, OriginatorID: "a", Body: HashOnlyBody(full.Hash())}
	if got := Compare(full, matching); got != Equal {
		t.Errorf("Compare(full, matchingHash) = %v, want Equal", got)
	}
}

// TestCompareIsAntisymmetric is a property check: swapping arguments
// must flip AWins/BWins and leave Equal/Unknown unchanged, for any pair
// of values reachable from random fields.
func TestCompareIsAntisymmetric(t *testing.T) {
	f := func(aVersion, bVersion uint64, aOrig, bOrig string, aBytes, bBytes []byte) bool {
		a := Value{Version: aVersion, OriginatorID: aOrig, Body: FullBody(aBytes)}
		b := Value{Version: bVersion, OriginatorID: bOrig, Body: FullBody(bBytes)}
		fwd := Compare(a, b)
		rev := Compare(b, a)
		switch fwd {
		case AWins:
			return rev == BWins
		case BWins:
			return rev == AWins
		case Equal:
			return rev == Equal
		default:
			return rev == Unknown
		}
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

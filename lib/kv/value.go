package kv

import (
	"hash/fnv"
	"strconv"
)

// BodyKind tags which variant a ValueBody carries. Modeled as an
// exhaustive tagged variant rather than optional fields so every merge
// rule in database.go can switch on it exhaustively, per the Design
// Notes' explicit preference for this shape over nil-checking bytes.
type BodyKind uint8

const (
	// BodyFull carries the actual replicated payload.
	BodyFull BodyKind = iota
	// BodyHashOnly carries only a digest of a payload the sender
	// believes the receiver already has (used during hash-dump diffs).
	BodyHashOnly
	// BodyTTLOnly carries neither payload nor hash; it may only refresh
	// the ttl/ttlVersion of an existing (version, originator) match.
	BodyTTLOnly
)

func (k BodyKind) String() string {
	switch k {
	case BodyFull:
		return "full"
	case BodyHashOnly:
		return "hash-only"
	case BodyTTLOnly:
		return "ttl-only"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// ValueBody is the payload portion of a Value: exactly one of a full
// byte payload, a precomputed hash, or neither.
type ValueBody struct {
	Kind  BodyKind
	Bytes []byte // valid iff Kind == BodyFull
	Hash  uint64 // valid iff Kind == BodyHashOnly
}

// HasValue reports whether this body carries an actual payload. Per
// invariant 3 in spec.md §3, only a body with HasValue can create a new
// key on merge.
func (b ValueBody) HasValue() bool {
	return b.Kind == BodyFull
}

// FullBody constructs a ValueBody carrying a payload.
func FullBody(value []byte) ValueBody {
	return ValueBody{Kind: BodyFull, Bytes: value}
}

// HashOnlyBody constructs a ValueBody carrying only a digest.
func HashOnlyBody(hash uint64) ValueBody {
	return ValueBody{Kind: BodyHashOnly, Hash: hash}
}

// TTLOnlyBody constructs a ValueBody carrying neither payload nor hash.
func TTLOnlyBody() ValueBody {
	return ValueBody{Kind: BodyTTLOnly}
}

// Value is the atomic replicated unit of the Store, per spec.md §3.
type Value struct {
	Version      uint64
	OriginatorID string
	Body         ValueBody
	TTLMs        int64
	TTLVersion   uint64
}

// ComputeHash returns the deterministic digest of (version, originatorId,
// value) required by invariant 5 in spec.md §3 and SPEC_FULL.md §8's
// hash-determinism property. It is defined only when the Value carries
// a full payload; callers needing the hash of a hash-only or ttl-only
// body should use the hash that arrived with it (there is nothing else
// to hash).
func (v Value) ComputeHash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strconv.FormatUint(v.Version, 10)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(v.OriginatorID))
	_, _ = h.Write([]byte{0})
	if v.Body.Kind == BodyFull {
		_, _ = h.Write(v.Body.Bytes)
	}
	return h.Sum64()
}

// Hash returns the digest carried by a HashOnly body; for any other body
// it returns ComputeHash, recomputed on every call (nothing is cached).
func (v Value) Hash() uint64 {
	if v.Body.Kind == BodyHashOnly {
		return v.Body.Hash
	}
	return v.ComputeHash()
}

// WithoutValue returns a copy of v with its payload zeroed, used by the
// Publisher Hub's doNotPublishValue projection (spec.md §4.7) and by
// dump-hash responses (spec.md §4.4).
func (v Value) WithoutValue() Value {
	v2 := v
	if v2.Body.Kind == BodyFull {
		v2.Body = HashOnlyBody(v.Hash())
	}
	return v2
}

// ToTTLOnly returns a copy of v with only ttl/ttlVersion fields
// meaningful, used when flooding a TTL refresh without resending a
// value peers already have.
func (v Value) ToTTLOnly() Value {
	v2 := v
	v2.Body = TTLOnlyBody()
	return v2
}

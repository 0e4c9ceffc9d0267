package area

import (
	"github.com/openr/kvstored/lib/kv"
)

// Publication is the on-the-wire flooding message of spec.md §6: an
// incremental update (or a snapshot chunk during full sync) scoped to
// one area, carrying the flood-loop-suppression node list and an
// optional spanning-tree root.
type Publication struct {
	Area        kv.AreaID
	KeyVals     map[string]kv.Value
	ExpiredKeys []string
	NodeIDs     []string
	FloodRootID string
	TimestampMs int64
}

// containsNode reports whether nodeID already appears in ids, the flood
// loop-suppression check of spec.md §6's nodeIds field.
func containsNode(ids []string, nodeID string) bool {
	for _, id := range ids {
		if id == nodeID {
			return true
		}
	}
	return false
}

// decrementPublicationTTL returns a copy of v with its ttl reduced by
// elapsedMs, floored at the threshold, grounded on Open/R's
// updatePublicationTtl (original_source/openr/kvstore/KvStoreUtil.h):
// every hop that relays a value-bearing publication decrements its ttl
// by the time that hop held it, so ttl approximates true end-to-end
// remaining lifetime rather than resetting at each relay.
func decrementPublicationTTL(v kv.Value, elapsedMs int64) kv.Value {
	v.TTLMs -= elapsedMs
	if v.TTLMs < kv.KTtlThreshold {
		v.TTLMs = kv.KTtlThreshold
	}
	return v
}

// decrementAllTTLs applies decrementPublicationTTL to every value in
// delta before it is relayed further, returning a fresh map so the
// caller's own stored generation (with its un-decremented ttl) is left
// untouched.
func decrementAllTTLs(delta map[string]kv.Value, elapsedMs int64) map[string]kv.Value {
	out := make(map[string]kv.Value, len(delta))
	for k, v := range delta {
		out[k] = decrementPublicationTTL(v, elapsedMs)
	}
	return out
}

// floodTargets selects, from the full peer set, the peers an
// incremental publication should be sent to: every peer except the
// source (split-horizon) and, when flood-optimization is enabled,
// every peer that is not a spanning-tree child of this node for the
// publication's root — per spec.md §4.4.
func floodTargets(peers map[string]*Peer, sourcePeer string, floodOptimization bool, dual *Dual, floodRootID string) []*Peer {
	var targets []*Peer
	for name, p := range peers {
		if name == sourcePeer {
			continue
		}
		if floodOptimization && dual != nil && floodRootID != "" {
			if !dual.IsChild(floodRootID, name) {
				continue
			}
		}
		targets = append(targets, p)
	}
	return targets
}

// publishIncremental implements spec.md §4.4's incremental publish: it
// is called once per non-empty merge delta, after ttl has been
// decremented for relay, with this node's own ID appended to the
// loop-suppression list, and attempts delivery to every flood target.
// Peers whose outbound queue overflows are marked for resync; the
// caller is expected to kick off a full sync once the peer's backoff
// elapses.
func publishIncremental(peers map[string]*Peer, sourcePeer string, floodOptimization bool, dual *Dual, pub Publication, selfNodeID string, nowMs int64) (overflowed []string) {
	if containsNode(pub.NodeIDs, selfNodeID) {
		// Already seen by this node along this path; nothing to relay.
		return nil
	}
	pub.NodeIDs = append(append([]string(nil), pub.NodeIDs...), selfNodeID)

	if elapsedMs := nowMs - pub.TimestampMs; elapsedMs > 0 && len(pub.KeyVals) > 0 {
		pub.KeyVals = decrementAllTTLs(pub.KeyVals, elapsedMs)
	}

	for _, p := range floodTargets(peers, sourcePeer, floodOptimization, dual, pub.FloodRootID) {
		if !p.TrySend(pub) {
			p.MarkResync(nowMs)
			overflowed = append(overflowed, p.Name)
		}
	}
	return overflowed
}

// SyncDiff is the outcome of comparing a peer's hash dump against the
// local database during full sync (spec.md §4.4).
type SyncDiff struct {
	// NeedFromPeer are keys where the peer's hash is Arbiter-better (or
	// Unknown) and must be requested with a value-bearing dump.
	NeedFromPeer []string
	// PushToPeer are keys where the local value is Arbiter-better and
	// should be pushed without being asked.
	PushToPeer map[string]kv.Value
}

// computeSyncDiff implements the "requester computes the symmetric
// difference" step of spec.md §4.4's full-sync protocol.
func computeSyncDiff(local *kv.Database, localSnapshot map[string]kv.Value, peerHashes map[string]kv.Value) SyncDiff {
	diff := SyncDiff{PushToPeer: make(map[string]kv.Value)}

	for key, peerHash := range peerHashes {
		cur, exists := local.Get(key)
		if !exists {
			diff.NeedFromPeer = append(diff.NeedFromPeer, key)
			continue
		}
		switch kv.Compare(peerHash, cur) {
		case kv.AWins, kv.Unknown:
			diff.NeedFromPeer = append(diff.NeedFromPeer, key)
		case kv.BWins:
			diff.PushToPeer[key] = cur
		case kv.Equal:
			// Already in sync.
		}
	}

	// Keys the local database has that the peer's hash dump never
	// mentioned at all: the peer does not have them yet, push them.
	for key, v := range localSnapshot {
		if _, seen := peerHashes[key]; !seen {
			diff.PushToPeer[key] = v
		}
	}

	return diff
}

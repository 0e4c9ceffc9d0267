package area

import (
	"math/rand"
	"time"

	"github.com/openr/kvstored/lib/kv"
)

// PeerState is a peer's position in the sync state machine of spec.md
// §3: "last-sync state {idle, syncing, established}" plus the resync
// state spec.md §4.4's backpressure policy introduces.
type PeerState int

const (
	PeerIdle PeerState = iota
	PeerSyncing
	PeerEstablished
	PeerResync
)

func (s PeerState) String() string {
	switch s {
	case PeerIdle:
		return "idle"
	case PeerSyncing:
		return "syncing"
	case PeerEstablished:
		return "established"
	case PeerResync:
		return "resync"
	default:
		return "unknown"
	}
}

// outboundCapacity bounds a peer's pending-publication queue, per
// spec.md §4.4: "per-peer send queue is bounded; on overflow the peer is
// marked resync".
const outboundCapacity = 128

// Transport is the peer-op surface the area package depends on without
// knowing about wire framing or sockets, per spec.md §1: "Transport
// framing... is abstracted — the Store's contract is defined over
// messages, not bytes." rpc/client implements this against the real RPC
// stack; tests implement it in-memory.
type Transport interface {
	// SendPublication delivers an incremental publication to the peer.
	SendPublication(peerName string, pub Publication) error
	// RequestHashes fetches a hash-only dump from the peer for full-sync.
	RequestHashes(peerName string, filter *kv.Filters) (map[string]kv.Value, error)
	// RequestValues fetches full values for specific keys from the peer.
	RequestValues(peerName string, keys []string) (map[string]kv.Value, error)
	// PushValues pushes full values to the peer without expecting a
	// reply, the "local is better, push it" half of full sync.
	PushValues(peerName string, values map[string]kv.Value) error
}

// Peer tracks one neighbor's sync state within a single area, per
// spec.md §3. Exponential backoff with jitter on resync is grounded on
// dKV's clientTransport.Send retry loop
// (rpc/transport/base/client.go), generalized from a per-request retry
// to a per-peer resync schedule.
type Peer struct {
	Name  string
	state PeerState

	outbound chan Publication

	backoffBaseMs int64
	backoffMs     int64
	nextAttempt   time.Time
}

// NewPeer constructs a Peer in the idle state.
func NewPeer(name string) *Peer {
	return &Peer{
		Name:          name,
		state:         PeerIdle,
		outbound:      make(chan Publication, outboundCapacity),
		backoffBaseMs: 200,
	}
}

func (p *Peer) State() PeerState { return p.state }

// TrySend enqueues pub for asynchronous delivery to this peer. It
// returns false if the queue is full, at which point the caller must
// call MarkResync — spec.md §4.4's backpressure policy.
func (p *Peer) TrySend(pub Publication) bool {
	select {
	case p.outbound <- pub:
		return true
	default:
		return false
	}
}

// Outbound returns the channel a peer-delivery goroutine drains.
func (p *Peer) Outbound() <-chan Publication { return p.outbound }

// MarkResync transitions the peer to PeerResync and schedules the next
// full-sync attempt after an exponential backoff with +-10% jitter,
// mirroring base/client.go's retry backoff.
func (p *Peer) MarkResync(nowMs int64) {
	p.state = PeerResync
	if p.backoffMs == 0 {
		p.backoffMs = p.backoffBaseMs
	}
	jitter := float64(p.backoffMs) * (0.9 + 0.2*rand.Float64())
	p.nextAttempt = time.UnixMilli(nowMs).Add(time.Duration(jitter) * time.Millisecond)
	p.backoffMs *= 2
	const maxBackoffMs = 60_000
	if p.backoffMs > maxBackoffMs {
		p.backoffMs = maxBackoffMs
	}
}

// ReadyForResync reports whether the backoff window has elapsed.
func (p *Peer) ReadyForResync(nowMs int64) bool {
	return p.state == PeerResync && !time.UnixMilli(nowMs).Before(p.nextAttempt)
}

// MarkSyncing transitions the peer into an active full sync.
func (p *Peer) MarkSyncing() { p.state = PeerSyncing }

// MarkEstablished transitions the peer to steady-state and resets the
// backoff, per spec.md §5: "a cancelled sync returns the peer to idle
// with backoff" — a *successful* sync instead clears it entirely.
func (p *Peer) MarkEstablished() {
	p.state = PeerEstablished
	p.backoffMs = 0
}

// MarkIdle returns the peer to idle without scheduling a backoff,
// used when a sync is cancelled rather than failed outright.
func (p *Peer) MarkIdle() { p.state = PeerIdle }

package store

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/log"
	"github.com/openr/kvstored/lib/store/area"
)

var logger = log.Get("store")

// TransportFactory builds the area.Transport a given area uses to talk
// to its peers. The RPC layer supplies the real implementation backed
// by rpc/client; tests supply an in-memory one.
type TransportFactory func(areaID kv.AreaID) area.Transport

// Supervisor owns the lifecycle of every configured area, per spec.md
// §2's Store Supervisor component. Grounded on dKV's rpcServer shard
// registry (rpc/server/server.go: `shards *xsync.MapOf[uint64,
// serverShard]`), generalized from a uint64 shard ID keyspace to the
// string-valued kv.AreaID this module uses.
type Supervisor struct {
	cfg        NodeConfig
	areas      *xsync.MapOf[kv.AreaID, *area.Area]
	transports *xsync.MapOf[kv.AreaID, area.Transport]
	stopCh     chan struct{}
}

// NewSupervisor constructs every configured area and starts the
// background goroutines that drive peer resync, per spec.md §4.4's
// backoff-and-retry policy.
func NewSupervisor(cfg NodeConfig, transportFactory TransportFactory) (*Supervisor, error) {
	s := &Supervisor{
		cfg:        cfg,
		areas:      xsync.NewMapOf[kv.AreaID, *area.Area](),
		transports: xsync.NewMapOf[kv.AreaID, area.Transport](),
		stopCh:     make(chan struct{}),
	}

	admission, err := cfg.KV.AdmissionFilter()
	if err != nil {
		return nil, kv.Wrap(kv.InvalidArgument, err, "supervisor: admission filter")
	}

	for _, ac := range cfg.Areas {
		transport := transportFactory(ac.AreaID)
		a := area.NewArea(area.Config{
			ID:                ac.AreaID,
			SelfNodeID:        cfg.NodeName,
			IsFloodRoot:       cfg.KV.IsFloodRoot,
			FloodOptimization: cfg.KV.EnableFloodOptimization,
			SyncInterval:      time.Duration(cfg.KV.SyncIntervalSec) * time.Second,
			AdmissionFilter:   admission,
		}, transport, nil)
		s.areas.Store(ac.AreaID, a)
		s.transports.Store(ac.AreaID, transport)
		logger.Infof("started area %s", ac.AreaID)
	}

	go s.resyncLoop()
	return s, nil
}

// AddPeer registers peerName with the given area and starts the
// forwarder goroutine that drains its outbound queue into the area's
// Transport, per spec.md §4.8's addPeer and §5's "the area loop itself
// stays free of any blocking transport call" boundary: the area only
// enqueues onto Peer.Outbound(), this forwarder is what actually calls
// Transport.SendPublication.
func (s *Supervisor) AddPeer(areaID kv.AreaID, peerName string) error {
	a, ok := s.GetArea(areaID)
	if !ok {
		return kv.NewError(kv.UnknownArea, string(areaID))
	}
	transport, _ := s.transports.Load(areaID)

	a.AddPeer(peerName)
	outbound, ok := a.PeerOutbound(peerName)
	if !ok {
		return nil // peer was removed again before the forwarder could start
	}
	go forwardPeerOutbound(a, transport, peerName, outbound)
	return nil
}

// forwardPeerOutbound drains a peer's outbound publication queue and
// hands each one to Transport.SendPublication, until the area's
// command loop stops. A send failure is logged and dropped; the peer's
// own FullSync/backoff cycle (driven by resyncLoop) is what recovers an
// unreachable peer, not a retry here.
func forwardPeerOutbound(a *area.Area, transport area.Transport, peerName string, outbound <-chan area.Publication) {
	for {
		select {
		case pub := <-outbound:
			if err := transport.SendPublication(peerName, pub); err != nil {
				logger.Warnf("send publication to %s failed: %v", peerName, err)
			}
		case <-a.Done():
			return
		}
	}
}

// GetArea returns the Area for id, or false if it is not configured on
// this node.
func (s *Supervisor) GetArea(id kv.AreaID) (*area.Area, bool) {
	return s.areas.Load(id)
}

// Areas returns the AreaIDs of every configured area.
func (s *Supervisor) Areas() []kv.AreaID {
	ids := make([]kv.AreaID, 0)
	s.areas.Range(func(id kv.AreaID, _ *area.Area) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// resyncLoop periodically asks every area which peers are due for a
// full sync after backoff and kicks them off, per spec.md §4.4. It
// runs independently of any single area's own loop, consistent with
// spec.md §5: "Cross-area work... is multiplexed on its own loop."
func (s *Supervisor) resyncLoop() {
	interval := time.Duration(s.cfg.KV.SyncIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.areas.Range(func(id kv.AreaID, a *area.Area) bool {
				for _, peerName := range a.PeersDueForResync() {
					go func(a *area.Area, peerName string) {
						if err := a.FullSync(peerName); err != nil {
							logger.Warnf("full sync with %s failed: %v", peerName, err)
						}
					}(a, peerName)
				}
				return true
			})
		case <-s.stopCh:
			return
		}
	}
}

// Close stops every area's command loop and the resync loop.
func (s *Supervisor) Close() {
	close(s.stopCh)
	s.areas.Range(func(_ kv.AreaID, a *area.Area) bool {
		a.Close()
		return true
	})
}

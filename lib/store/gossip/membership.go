package gossip

import (
	"fmt"
	"sync"

	"github.com/hashicorp/memberlist"

	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/log"
	"github.com/openr/kvstored/lib/store"
)

var logger = log.Get("store/gossip")

// Membership discovers peer nodes with hashicorp/memberlist and keeps a
// Dispatcher's areas in sync with the cluster: every node that joins or
// updates its metadata gets added as a peer on every configured area,
// every node that leaves gets removed. dKV has no equivalent to this —
// it discovers replicas through a static ClusterMembers map passed to
// Dragonboat — so this is grounded on memberlist's own documented
// Delegate/EventDelegate pattern rather than a teacher file, promoting
// the dependency from dKV's transitive closure (it arrives via
// hashicorp/raft's test tooling there) to direct use here.
//
// Membership also implements rpc/client.PeerResolver: RPC clients
// resolve a peer name to its RPC endpoint by reading the metadata this
// type gossips, rather than through a static address table.
type Membership struct {
	list     *memberlist.Memberlist
	selfName string
	selfRPC  string

	mu         sync.RWMutex
	endpoints  map[string]string // peer name -> RPC endpoint
	dispatcher *store.Dispatcher // nil until Bind is called
	areaIDs    []kv.AreaID
}

// Config configures the memberlist transport and the RPC endpoint this
// node advertises to the rest of the cluster.
type Config struct {
	NodeName    string
	RPCEndpoint string
	BindAddr    string
	BindPort    int
	Seeds       []string
}

// NewMembership starts gossiping with cfg. It blocks only long enough
// to bind the gossip transport and join cfg.Seeds, if any. Peer-table
// events are recorded in Resolve's endpoint map from the moment the
// transport comes up, but are not applied to a Dispatcher until Bind is
// called: a node's Supervisor (and the Dispatcher built on it) cannot
// exist before NewSupervisor runs, which in turn needs a resolver — so
// gossip has to start before there's anything to notify.
func NewMembership(cfg Config) (*Membership, error) {
	m := &Membership{
		selfName:  cfg.NodeName,
		selfRPC:   cfg.RPCEndpoint,
		endpoints: map[string]string{cfg.NodeName: cfg.RPCEndpoint},
	}

	mlCfg := memberlist.DefaultLocalConfig()
	mlCfg.Name = cfg.NodeName
	if cfg.BindAddr != "" {
		mlCfg.BindAddr = cfg.BindAddr
	}
	if cfg.BindPort != 0 {
		mlCfg.BindPort = cfg.BindPort
		mlCfg.AdvertisePort = cfg.BindPort
	}
	mlCfg.Delegate = m
	mlCfg.Events = m
	mlCfg.LogOutput = logWriter{}

	list, err := memberlist.Create(mlCfg)
	if err != nil {
		return nil, fmt.Errorf("gossip: create memberlist: %w", err)
	}
	m.list = list

	if len(cfg.Seeds) > 0 {
		if _, err := list.Join(cfg.Seeds); err != nil {
			logger.Warnf("failed to join seeds %v: %v", cfg.Seeds, err)
		}
	}

	return m, nil
}

// Bind attaches a Dispatcher to the membership: every node already
// known to be alive is immediately added as a peer on every area in
// areaIDs, and every future join/leave/update is applied the same way.
// Call this once, right after building the Dispatcher that will serve
// areaIDs.
func (m *Membership) Bind(dispatcher *store.Dispatcher, areaIDs []kv.AreaID) {
	m.mu.Lock()
	m.dispatcher = dispatcher
	m.areaIDs = areaIDs
	known := make([]string, 0, len(m.endpoints))
	for name := range m.endpoints {
		if name != m.selfName {
			known = append(known, name)
		}
	}
	m.mu.Unlock()

	for _, name := range known {
		m.addPeer(name, "")
	}
}

// Resolve implements rpc/client.PeerResolver.
func (m *Membership) Resolve(peerName string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	endpoint, ok := m.endpoints[peerName]
	return endpoint, ok
}

// Members returns the names of every node currently known to be alive,
// including this one.
func (m *Membership) Members() []string {
	names := make([]string, 0)
	for _, node := range m.list.Members() {
		names = append(names, node.Name)
	}
	return names
}

// Leave gracefully announces departure to the cluster and shuts down
// the gossip transport.
func (m *Membership) Leave() error {
	if err := m.list.Leave(0); err != nil {
		logger.Warnf("error leaving cluster: %v", err)
	}
	return m.list.Shutdown()
}

// addPeer records name's endpoint (when known) and, once Bind has run,
// registers it as a peer on every configured area. An empty endpoint
// means "already known" — used when Bind replays existing members,
// which must not clobber the endpoint memberlist already gossiped.
func (m *Membership) addPeer(name, endpoint string) {
	if name == m.selfName {
		return
	}
	m.mu.Lock()
	if endpoint != "" {
		m.endpoints[name] = endpoint
	}
	dispatcher, areaIDs := m.dispatcher, m.areaIDs
	m.mu.Unlock()

	if dispatcher == nil {
		return
	}
	for _, areaID := range areaIDs {
		if err := dispatcher.AddPeer(areaID, name); err != nil {
			logger.Warnf("addPeer %s on %s: %v", name, areaID, err)
		}
	}
}

func (m *Membership) removePeer(name string) {
	if name == m.selfName {
		return
	}
	m.mu.Lock()
	delete(m.endpoints, name)
	dispatcher, areaIDs := m.dispatcher, m.areaIDs
	m.mu.Unlock()

	if dispatcher == nil {
		return
	}
	for _, areaID := range areaIDs {
		if err := dispatcher.DelPeer(areaID, name); err != nil {
			logger.Warnf("delPeer %s on %s: %v", name, areaID, err)
		}
	}
}

// --------------------------------------------------------------------------
// memberlist.Delegate
// --------------------------------------------------------------------------

// NodeMeta advertises this node's RPC endpoint to the rest of the
// cluster as raw bytes, read back by peers in NotifyJoin/NotifyUpdate.
func (m *Membership) NodeMeta(limit int) []byte {
	meta := []byte(m.selfRPC)
	if len(meta) > limit {
		meta = meta[:limit]
	}
	return meta
}

// NotifyMsg, GetBroadcasts, LocalState and MergeRemoteState are unused:
// area flooding already carries key-value state over the RPC peer
// transport, gossip here is membership-only.
func (m *Membership) NotifyMsg([]byte)                           {}
func (m *Membership) GetBroadcasts(overhead, limit int) [][]byte  { return nil }
func (m *Membership) LocalState(join bool) []byte                { return nil }
func (m *Membership) MergeRemoteState(buf []byte, join bool)      {}

// --------------------------------------------------------------------------
// memberlist.EventDelegate
// --------------------------------------------------------------------------

func (m *Membership) NotifyJoin(node *memberlist.Node) {
	m.addPeer(node.Name, string(node.Meta))
}

func (m *Membership) NotifyLeave(node *memberlist.Node) {
	m.removePeer(node.Name)
}

func (m *Membership) NotifyUpdate(node *memberlist.Node) {
	m.addPeer(node.Name, string(node.Meta))
}

// logWriter forwards memberlist's *log.Logger output into lib/log at
// debug level; memberlist is chatty about routine gossip rounds.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	logger.Debugf("%s", string(p))
	return len(p), nil
}

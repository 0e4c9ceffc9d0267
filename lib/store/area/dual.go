package area

import "sync"

// DualMessage is the wire message of spec.md §4.5's Dual Spanning-Tree
// protocol: {root, sender, cost, flags}.
type DualMessage struct {
	Root   string
	Sender string
	Cost   uint32
	Flags  DualFlags
}

// DualFlags marks a DualMessage as part of a query/reply diffusing
// computation, per the Diffusing Update Algorithm spec.md §4.5 names.
type DualFlags uint8

const (
	DualUpdate DualFlags = 0
	DualQuery  DualFlags = 1 << 0
	DualReply  DualFlags = 1 << 1
)

// linkCost is the uniform cost of every peer link. The spec does not
// call for weighted links; a constant cost keeps the algorithm a pure
// hop-count shortest-path tree, which is sufficient to elect the single
// parent per root spec.md §4.5 requires.
const linkCost uint32 = 1

// rootState is one root's current spanning-tree position: its distance
// estimate, the neighbor it reaches that root through, and the
// neighbors that in turn reach the root through this node.
type rootState struct {
	cost     uint32
	parent   string
	children map[string]struct{}

	// neighborCost is this node's most recent reported distance-to-root
	// from each neighbor; it is the distance-vector table the parent
	// selection and child-assignment decisions are derived from.
	neighborCost map[string]uint32
}

// Dual tracks, per flood root, the Diffusing-Update-Algorithm state of
// spec.md §4.5: cost, parent, children. This is a simplified
// distance-vector variant of Cisco's full DUAL FSM (no feasibility
// condition, no diffusing computation across a query/reply handshake
// beyond flag bookkeeping) — proportionate to the optional 10% budget
// spec.md §2 assigns this component, while still producing the
// cost/parent/children triple the SPT-info RPC (spec.md §4.5, §4.8) and
// flood-target selection (flood.go's IsChild) depend on.
type Dual struct {
	selfNodeID string

	mu    sync.Mutex
	roots map[string]*rootState
}

// NewDual constructs a Dual for a node identified by selfNodeID.
func NewDual(selfNodeID string) *Dual {
	return &Dual{selfNodeID: selfNodeID, roots: make(map[string]*rootState)}
}

// BecomeRoot declares this node a root of its own spanning tree, with
// cost 0 and no parent, per spec.md's isFloodRoot config flag.
func (d *Dual) BecomeRoot(rootID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roots[rootID] = &rootState{cost: 0, neighborCost: make(map[string]uint32)}
}

// ProcessMessage feeds an incoming DualMessage into the per-root
// distance-vector state, recomputing this node's parent and cost for
// that root and returning whether anything changed (the caller uses
// that to decide whether to propagate an updated DualMessage to its own
// neighbors).
func (d *Dual) ProcessMessage(msg DualMessage) (changed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.roots[msg.Root]
	if !ok {
		st = &rootState{cost: ^uint32(0), neighborCost: make(map[string]uint32)}
		d.roots[msg.Root] = st
	}
	st.neighborCost[msg.Sender] = msg.Cost

	oldParent, oldCost := st.parent, st.cost
	newParent, newCost := bestParent(st.neighborCost)
	st.parent, st.cost = newParent, newCost
	d.recomputeChildren(st)

	return newParent != oldParent || newCost != oldCost
}

// bestParent picks the neighbor with the lowest reported cost-to-root,
// breaking ties by neighbor name for determinism.
func bestParent(neighborCost map[string]uint32) (string, uint32) {
	best := ""
	bestCost := ^uint32(0)
	for neighbor, cost := range neighborCost {
		total := cost + linkCost
		if total < bestCost || (total == bestCost && neighbor < best) {
			best, bestCost = neighbor, total
		}
	}
	return best, bestCost
}

// recomputeChildren marks every neighbor whose reported cost is strictly
// greater than this node's own cost as a child: that neighbor reaches
// the root at higher cost than going through this node, so publications
// destined for it should flow through here.
func (d *Dual) recomputeChildren(st *rootState) {
	st.children = make(map[string]struct{})
	for neighbor, cost := range st.neighborCost {
		if neighbor == st.parent {
			continue
		}
		if cost > st.cost {
			st.children[neighbor] = struct{}{}
		}
	}
}

// IsChild reports whether peerName is currently a spanning-tree child of
// this node for rootID, per flood.go's flood-optimization target filter.
func (d *Dual) IsChild(rootID, peerName string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.roots[rootID]
	if !ok {
		return false
	}
	_, isChild := st.children[peerName]
	return isChild
}

// SpanningTreeInfo is the diagnostic snapshot spec.md §4.5's "dump
// current SPT info" RPC returns for one root.
type SpanningTreeInfo struct {
	Root     string
	Cost     uint32
	Parent   string
	Children []string
}

// Dump returns the current SpanningTreeInfo for every known root.
func (d *Dual) Dump() []SpanningTreeInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos := make([]SpanningTreeInfo, 0, len(d.roots))
	for root, st := range d.roots {
		children := make([]string, 0, len(st.children))
		for c := range st.children {
			children = append(children, c)
		}
		infos = append(infos, SpanningTreeInfo{Root: root, Cost: st.cost, Parent: st.parent, Children: children})
	}
	return infos
}

// UpdateChild manually marks peerName as a child of this node for
// rootID, per spec.md §4.8's updateFloodTopologyChild manual hint.
func (d *Dual) UpdateChild(rootID, peerName string, isChild bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.roots[rootID]
	if !ok {
		st = &rootState{neighborCost: make(map[string]uint32)}
		d.roots[rootID] = st
	}
	if st.children == nil {
		st.children = make(map[string]struct{})
	}
	if isChild {
		st.children[peerName] = struct{}{}
	} else {
		delete(st.children, peerName)
	}
}

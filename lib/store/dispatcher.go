package store

import (
	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/store/area"
	"github.com/openr/kvstored/lib/store/pubsub"
)

// Dispatcher services the nine area-scoped operations of spec.md §4.8,
// translating UnknownArea and InvalidArgument into errors the RPC layer
// can send back over the wire. Grounded on dKV's IStoreServerAdapter
// (rpc/server/adapter_istore.go): a thin switch from a wire-shaped
// request onto typed store operations, here generalized from the nine
// dKV operations to the nine operations spec.md §4.8 defines.
type Dispatcher struct {
	supervisor *Supervisor
}

// NewDispatcher wraps supervisor with the Request Dispatcher surface.
func NewDispatcher(supervisor *Supervisor) *Dispatcher {
	return &Dispatcher{supervisor: supervisor}
}

func (d *Dispatcher) area(areaID kv.AreaID) (*area.Area, error) {
	a, ok := d.supervisor.GetArea(areaID)
	if !ok {
		return nil, kv.NewError(kv.UnknownArea, string(areaID))
	}
	return a, nil
}

// SetKeyVals merges incoming as if from a local source and floods the
// resulting delta, per spec.md §4.8's setKeyVals.
func (d *Dispatcher) SetKeyVals(areaID kv.AreaID, incoming map[string]kv.Value) (map[string]kv.Value, error) {
	a, err := d.area(areaID)
	if err != nil {
		return nil, err
	}
	return a.SetKeyVals(incoming), nil
}

// GetKeyVals returns the present subset of keys, per spec.md §4.8's
// getKeyVals.
func (d *Dispatcher) GetKeyVals(areaID kv.AreaID, keys []string) (map[string]kv.Value, error) {
	a, err := d.area(areaID)
	if err != nil {
		return nil, err
	}
	return a.GetKeyVals(keys), nil
}

// DumpKeyVals returns a full filtered dump, per spec.md §4.8's
// dumpKeyVals. An unparseable filter fails InvalidArgument, per
// spec.md §4.8's final paragraph.
func (d *Dispatcher) DumpKeyVals(areaID kv.AreaID, prefixes, originators []string, operator kv.Operator) (map[string]kv.Value, error) {
	a, err := d.area(areaID)
	if err != nil {
		return nil, err
	}
	filter, err := kv.NewFilters(prefixes, originators, operator)
	if err != nil {
		return nil, kv.Wrap(kv.InvalidArgument, err, "dumpKeyVals: filter")
	}
	return a.DumpKeyVals(filter), nil
}

// DumpHashes returns a filtered dump with values omitted, per spec.md
// §4.8's dumpHashes.
func (d *Dispatcher) DumpHashes(areaID kv.AreaID, prefixes, originators []string, operator kv.Operator) (map[string]kv.Value, error) {
	a, err := d.area(areaID)
	if err != nil {
		return nil, err
	}
	filter, err := kv.NewFilters(prefixes, originators, operator)
	if err != nil {
		return nil, kv.Wrap(kv.InvalidArgument, err, "dumpHashes: filter")
	}
	return a.DumpHashes(filter), nil
}

// GetPeers returns the configured peers of an area, per spec.md §4.8's
// getPeers.
func (d *Dispatcher) GetPeers(areaID kv.AreaID) ([]string, error) {
	a, err := d.area(areaID)
	if err != nil {
		return nil, err
	}
	return a.GetPeers(), nil
}

// AddPeer registers a new peer and starts forwarding its outbound
// publications to the transport, per spec.md §4.8's addPeer.
func (d *Dispatcher) AddPeer(areaID kv.AreaID, peerName string) error {
	return d.supervisor.AddPeer(areaID, peerName)
}

// DelPeer removes a peer, per spec.md §4.8's delPeer.
func (d *Dispatcher) DelPeer(areaID kv.AreaID, peerName string) error {
	a, err := d.area(areaID)
	if err != nil {
		return err
	}
	a.DelPeer(peerName)
	return nil
}

// ProcessDualMessage feeds a batch of Dual messages into an area's
// spanning-tree state, per spec.md §4.8's processDualMessage.
func (d *Dispatcher) ProcessDualMessage(areaID kv.AreaID, messages []area.DualMessage) error {
	a, err := d.area(areaID)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		a.ProcessDualMessage(msg)
	}
	return nil
}

// UpdateFloodTopologyChild applies a manual spanning-tree child hint,
// per spec.md §4.8's updateFloodTopologyChild.
func (d *Dispatcher) UpdateFloodTopologyChild(areaID kv.AreaID, rootID, peerName string, isChild bool) error {
	a, err := d.area(areaID)
	if err != nil {
		return err
	}
	a.UpdateFloodTopologyChild(rootID, peerName, isChild)
	return nil
}

// GetSpanningTreeInfos returns the SPT diagnostic dump, per spec.md
// §4.8's getSpanningTreeInfos.
func (d *Dispatcher) GetSpanningTreeInfos(areaID kv.AreaID) ([]area.SpanningTreeInfo, error) {
	a, err := d.area(areaID)
	if err != nil {
		return nil, err
	}
	return a.GetSpanningTreeInfos(), nil
}

// ReceivePublication merges a peer's publication into areaID, per
// area.Transport's SendPublication/PushValues wire contract: both
// arrive at the Dispatcher as an incoming publication from peerName.
func (d *Dispatcher) ReceivePublication(areaID kv.AreaID, peerName string, pub area.Publication) error {
	a, err := d.area(areaID)
	if err != nil {
		return err
	}
	a.ReceivePublication(peerName, pub)
	return nil
}

// SubscribeAndGetAreaKvStores opens a snapshot+stream subscription
// across every area in areaIDs, per spec.md §4.8's
// subscribeAndGetAreaKvStores. All areas must exist; on a failure
// partway through, any subscriptions already opened are cancelled.
func (d *Dispatcher) SubscribeAndGetAreaKvStores(areaIDs []kv.AreaID, prefixes, originators []string, operator kv.Operator, ignoreTTL, doNotPublishValue bool) (*MultiAreaSubscription, error) {
	filter, err := kv.NewFilters(prefixes, originators, operator)
	if err != nil {
		return nil, kv.Wrap(kv.InvalidArgument, err, "subscribeAndGetAreaKvStores: filter")
	}

	opened := make(map[kv.AreaID]*area.Area, len(areaIDs))
	subs := make(map[kv.AreaID]*pubsub.Subscription, len(areaIDs))
	for _, id := range areaIDs {
		a, err := d.area(id)
		if err != nil {
			for id, a := range opened {
				a.Unsubscribe(subs[id].ID)
			}
			return nil, err
		}
		opened[id] = a
		subs[id] = a.Subscribe(filter, ignoreTTL, doNotPublishValue)
	}

	return newMultiAreaSubscription(opened, subs), nil
}

package server

import (
	"github.com/openr/kvstored/lib/store"
	"github.com/openr/kvstored/lib/store/area"
	"github.com/openr/kvstored/rpc/wire"
)

// handle dispatches one decoded wire.Message onto the Dispatcher method
// its MsgType names, replacing dKV's iStoreServerAdapterImpl/
// lockManagerServerAdapterImpl pair (rpc/server/adapter_istore.go,
// adapter_lockmgr.go): those were two adapters chosen per shard type,
// here there is one Dispatcher and one switch over the nine area
// operations plus the four peer-transport operations area.Transport
// needs served from the same connection.
func handle(d *store.Dispatcher, req *wire.Message) *wire.Message {
	switch req.MsgType {
	case wire.MsgTSetKeyVals:
		kvs, err := d.SetKeyVals(req.AreaID, req.KeyVals)
		return wire.NewSetKeyValsResponse(kvs, err)

	case wire.MsgTGetKeyVals:
		kvs, err := d.GetKeyVals(req.AreaID, req.Keys)
		return wire.NewGetKeyValsResponse(kvs, err)

	case wire.MsgTDumpKeyVals:
		kvs, err := d.DumpKeyVals(req.AreaID, req.Prefixes, req.Originators, req.Operator)
		return wire.NewDumpKeyValsResponse(kvs, err)

	case wire.MsgTDumpHashes:
		kvs, err := d.DumpHashes(req.AreaID, req.Prefixes, req.Originators, req.Operator)
		return wire.NewDumpHashesResponse(kvs, err)

	case wire.MsgTGetPeers:
		peers, err := d.GetPeers(req.AreaID)
		return wire.NewGetPeersResponse(peers, err)

	case wire.MsgTAddPeer:
		err := d.AddPeer(req.AreaID, req.PeerName)
		return wire.NewOkResponse(wire.MsgTAddPeer, err)

	case wire.MsgTDelPeer:
		err := d.DelPeer(req.AreaID, req.PeerName)
		return wire.NewOkResponse(wire.MsgTDelPeer, err)

	case wire.MsgTProcessDualMessage:
		err := d.ProcessDualMessage(req.AreaID, req.DualMessages)
		return wire.NewOkResponse(wire.MsgTProcessDualMessage, err)

	case wire.MsgTUpdateFloodTopologyChild:
		err := d.UpdateFloodTopologyChild(req.AreaID, req.Root, req.PeerName, req.IsChild)
		return wire.NewOkResponse(wire.MsgTUpdateFloodTopologyChild, err)

	case wire.MsgTGetSpanningTreeInfos:
		infos, err := d.GetSpanningTreeInfos(req.AreaID)
		return wire.NewGetSpanningTreeInfosResponse(infos, err)

	// Peer-transport operations: a peer reaches these through the same
	// Dispatcher a client talks to, since from the serving node's point
	// of view a peer publication is just another incoming merge.
	case wire.MsgTSendPublication:
		var pub area.Publication
		if req.Publication != nil {
			pub = *req.Publication
		}
		err := d.ReceivePublication(req.AreaID, req.PeerName, pub)
		return wire.NewOkResponse(wire.MsgTSendPublication, err)

	case wire.MsgTRequestHashes:
		kvs, err := d.DumpHashes(req.AreaID, req.Prefixes, req.Originators, req.Operator)
		return wire.NewRequestHashesResponse(kvs, err)

	case wire.MsgTRequestValues:
		kvs, err := d.GetKeyVals(req.AreaID, req.Keys)
		return wire.NewRequestValuesResponse(kvs, err)

	case wire.MsgTPushValues:
		err := d.ReceivePublication(req.AreaID, req.PeerName, area.Publication{Area: req.AreaID, KeyVals: req.KeyVals})
		return wire.NewOkResponse(wire.MsgTPushValues, err)

	default:
		return wire.NewErrorResponse("server: unsupported message type: " + req.MsgType.String())
	}
}

package wire

import (
	"encoding/json"
	"fmt"

	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/store/area"
)

// Message is the single envelope used for both requests and responses to
// and from a Dispatcher, the area to operate on always travels inside
// this envelope rather than in the transport frame, since one node runs
// a single Dispatcher multiplexing every area it has configured. Which
// fields are populated depends on MsgType.
type Message struct {
	MsgType MessageType `json:"msg_type"`

	AreaID kv.AreaID `json:"area_id,omitempty"`

	// Dump/Get/Set fields
	Keys    []string           `json:"keys,omitempty"`
	KeyVals map[string]kv.Value `json:"key_vals,omitempty"`

	// Filter fields, used by DumpKeyVals/DumpHashes/RequestHashes;
	// IgnoreTTL and DoNotPublishVal are set by no request constructor
	Prefixes        []string   `json:"prefixes,omitempty"`
	Originators     []string   `json:"originators,omitempty"`
	Operator        kv.Operator `json:"operator,omitempty"`
	IgnoreTTL       bool       `json:"ignore_ttl,omitempty"`
	DoNotPublishVal bool       `json:"do_not_publish_val,omitempty"`

	// Peer management fields
	PeerName string   `json:"peer_name,omitempty"`
	Peers    []string `json:"peers,omitempty"`

	// Spanning-tree / flood-control fields
	DualMessages  []area.DualMessage      `json:"dual_messages,omitempty"`
	Root          string                  `json:"root,omitempty"`
	Parent        string                  `json:"parent,omitempty"`
	IsChild       bool                    `json:"is_child,omitempty"`
	SpanningTrees []area.SpanningTreeInfo `json:"spanning_trees,omitempty"`

	// Peer-transport fields: the wire shape of area.Transport's four
	// methods, carried over the same RPC connection used for client
	// requests rather than a dedicated gossip channel.
	Publication *area.Publication `json:"publication,omitempty"`

	// Response-only fields
	Ok  bool   `json:"ok,omitempty"`
	Err string `json:"err,omitempty"`
}

// NewSetKeyValsRequest builds the request envelope for Dispatcher.SetKeyVals.
func NewSetKeyValsRequest(areaID kv.AreaID, keyVals map[string]kv.Value) *Message {
	return &Message{MsgType: MsgTSetKeyVals, AreaID: areaID, KeyVals: keyVals}
}

// NewSetKeyValsResponse builds the response envelope for Dispatcher.SetKeyVals.
func NewSetKeyValsResponse(keyVals map[string]kv.Value, err error) *Message {
	return newKeyValsResponse(MsgTSetKeyVals, keyVals, err)
}

// NewGetKeyValsRequest builds the request envelope for Dispatcher.GetKeyVals.
func NewGetKeyValsRequest(areaID kv.AreaID, keys []string) *Message {
	return &Message{MsgType: MsgTGetKeyVals, AreaID: areaID, Keys: keys}
}

// NewGetKeyValsResponse builds the response envelope for Dispatcher.GetKeyVals.
func NewGetKeyValsResponse(keyVals map[string]kv.Value, err error) *Message {
	return newKeyValsResponse(MsgTGetKeyVals, keyVals, err)
}

// NewDumpKeyValsRequest builds the request envelope for Dispatcher.DumpKeyVals.
func NewDumpKeyValsRequest(areaID kv.AreaID, prefixes, originators []string, operator kv.Operator) *Message {
	return &Message{MsgType: MsgTDumpKeyVals, AreaID: areaID, Prefixes: prefixes, Originators: originators, Operator: operator}
}

// NewDumpKeyValsResponse builds the response envelope for Dispatcher.DumpKeyVals.
func NewDumpKeyValsResponse(keyVals map[string]kv.Value, err error) *Message {
	return newKeyValsResponse(MsgTDumpKeyVals, keyVals, err)
}

// NewDumpHashesRequest builds the request envelope for Dispatcher.DumpHashes.
func NewDumpHashesRequest(areaID kv.AreaID, prefixes, originators []string, operator kv.Operator) *Message {
	return &Message{MsgType: MsgTDumpHashes, AreaID: areaID, Prefixes: prefixes, Originators: originators, Operator: operator}
}

// NewDumpHashesResponse builds the response envelope for Dispatcher.DumpHashes.
func NewDumpHashesResponse(keyVals map[string]kv.Value, err error) *Message {
	return newKeyValsResponse(MsgTDumpHashes, keyVals, err)
}

// NewGetPeersRequest builds the request envelope for Dispatcher.GetPeers.
func NewGetPeersRequest(areaID kv.AreaID) *Message {
	return &Message{MsgType: MsgTGetPeers, AreaID: areaID}
}

// NewGetPeersResponse builds the response envelope for Dispatcher.GetPeers.
func NewGetPeersResponse(peers []string, err error) *Message {
	msg := &Message{MsgType: MsgTGetPeers, Peers: peers}
	setErr(msg, err)
	return msg
}

// NewAddPeerRequest builds the request envelope for Dispatcher.AddPeer.
func NewAddPeerRequest(areaID kv.AreaID, peerName string) *Message {
	return &Message{MsgType: MsgTAddPeer, AreaID: areaID, PeerName: peerName}
}

// NewDelPeerRequest builds the request envelope for Dispatcher.DelPeer.
func NewDelPeerRequest(areaID kv.AreaID, peerName string) *Message {
	return &Message{MsgType: MsgTDelPeer, AreaID: areaID, PeerName: peerName}
}

// NewOkResponse builds a bare success/error response, used for
// operations (AddPeer, DelPeer, ProcessDualMessage,
// UpdateFloodTopologyChild, SendPublication, PushValues) whose result
// is just "did it work".
func NewOkResponse(msgType MessageType, err error) *Message {
	msg := &Message{MsgType: msgType}
	setErr(msg, err)
	return msg
}

// NewProcessDualMessageRequest builds the request envelope for
// Dispatcher.ProcessDualMessage.
func NewProcessDualMessageRequest(areaID kv.AreaID, messages []area.DualMessage) *Message {
	return &Message{MsgType: MsgTProcessDualMessage, AreaID: areaID, DualMessages: messages}
}

// NewUpdateFloodTopologyChildRequest builds the request envelope for
// Dispatcher.UpdateFloodTopologyChild.
func NewUpdateFloodTopologyChildRequest(areaID kv.AreaID, rootID, peerName string, isChild bool) *Message {
	return &Message{MsgType: MsgTUpdateFloodTopologyChild, AreaID: areaID, Root: rootID, PeerName: peerName, IsChild: isChild}
}

// NewGetSpanningTreeInfosRequest builds the request envelope for
// Dispatcher.GetSpanningTreeInfos.
func NewGetSpanningTreeInfosRequest(areaID kv.AreaID) *Message {
	return &Message{MsgType: MsgTGetSpanningTreeInfos, AreaID: areaID}
}

// NewGetSpanningTreeInfosResponse builds the response envelope for
// Dispatcher.GetSpanningTreeInfos.
func NewGetSpanningTreeInfosResponse(infos []area.SpanningTreeInfo, err error) *Message {
	msg := &Message{MsgType: MsgTGetSpanningTreeInfos, SpanningTrees: infos}
	setErr(msg, err)
	return msg
}

// NewSendPublicationRequest builds the wire shape of area.Transport's
// SendPublication, carried peer-to-peer over the same RPC connection a
// client uses to talk to a Dispatcher.
func NewSendPublicationRequest(areaID kv.AreaID, peerName string, pub area.Publication) *Message {
	return &Message{MsgType: MsgTSendPublication, AreaID: areaID, PeerName: peerName, Publication: &pub}
}

// NewRequestHashesRequest builds the wire shape of area.Transport's
// RequestHashes.
func NewRequestHashesRequest(areaID kv.AreaID, prefixes, originators []string, operator kv.Operator) *Message {
	return &Message{MsgType: MsgTRequestHashes, AreaID: areaID, Prefixes: prefixes, Originators: originators, Operator: operator}
}

// NewRequestHashesResponse builds the response envelope for MsgTRequestHashes.
func NewRequestHashesResponse(keyVals map[string]kv.Value, err error) *Message {
	return newKeyValsResponse(MsgTRequestHashes, keyVals, err)
}

// NewRequestValuesRequest builds the wire shape of area.Transport's
// RequestValues.
func NewRequestValuesRequest(areaID kv.AreaID, keys []string) *Message {
	return &Message{MsgType: MsgTRequestValues, AreaID: areaID, Keys: keys}
}

// NewRequestValuesResponse builds the response envelope for MsgTRequestValues.
func NewRequestValuesResponse(keyVals map[string]kv.Value, err error) *Message {
	return newKeyValsResponse(MsgTRequestValues, keyVals, err)
}

// NewPushValuesRequest builds the wire shape of area.Transport's PushValues.
func NewPushValuesRequest(areaID kv.AreaID, values map[string]kv.Value) *Message {
	return &Message{MsgType: MsgTPushValues, AreaID: areaID, KeyVals: values}
}

// NewErrorResponse builds a bare error response, used when a request
// cannot even be decoded or dispatched to the right operation.
func NewErrorResponse(err string) *Message {
	return &Message{MsgType: MsgTError, Err: err}
}

func newKeyValsResponse(msgType MessageType, keyVals map[string]kv.Value, err error) *Message {
	msg := &Message{MsgType: msgType, KeyVals: keyVals}
	setErr(msg, err)
	return msg
}

func setErr(msg *Message, err error) {
	if err != nil {
		msg.Err = err.Error()
		return
	}
	msg.Ok = true
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType identifies which Dispatcher (or peer-transport) operation a
// Message carries.
type MessageType uint8

const (
	MsgTUnknown MessageType = iota
	MsgTSuccess
	MsgTError

	// Dispatcher operations, one per method of spec.md's area-scoped
	// request surface.

	MsgTSetKeyVals
	MsgTGetKeyVals
	MsgTDumpKeyVals
	MsgTDumpHashes
	MsgTGetPeers
	MsgTAddPeer
	MsgTDelPeer
	MsgTProcessDualMessage
	MsgTUpdateFloodTopologyChild
	MsgTGetSpanningTreeInfos

	// Peer-transport operations: the wire shape of area.Transport,
	// carried over the same connection a client uses to reach a
	// Dispatcher, since a peer is just another node's Dispatcher.

	MsgTSendPublication
	MsgTRequestHashes
	MsgTRequestValues
	MsgTPushValues
)

func (t MessageType) String() string {
	switch t {
	case MsgTSuccess:
		return "success"
	case MsgTError:
		return "error"
	case MsgTSetKeyVals:
		return "setKeyVals"
	case MsgTGetKeyVals:
		return "getKeyVals"
	case MsgTDumpKeyVals:
		return "dumpKeyVals"
	case MsgTDumpHashes:
		return "dumpHashes"
	case MsgTGetPeers:
		return "getPeers"
	case MsgTAddPeer:
		return "addPeer"
	case MsgTDelPeer:
		return "delPeer"
	case MsgTProcessDualMessage:
		return "processDualMessage"
	case MsgTUpdateFloodTopologyChild:
		return "updateFloodTopologyChild"
	case MsgTGetSpanningTreeInfos:
		return "getSpanningTreeInfos"
	case MsgTSendPublication:
		return "sendPublication"
	case MsgTRequestHashes:
		return "requestHashes"
	case MsgTRequestValues:
		return "requestValues"
	case MsgTPushValues:
		return "pushValues"
	default:
		return "unknown"
	}
}

func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "success":
		*t = MsgTSuccess
	case "error":
		*t = MsgTError
	case "setKeyVals":
		*t = MsgTSetKeyVals
	case "getKeyVals":
		*t = MsgTGetKeyVals
	case "dumpKeyVals":
		*t = MsgTDumpKeyVals
	case "dumpHashes":
		*t = MsgTDumpHashes
	case "getPeers":
		*t = MsgTGetPeers
	case "addPeer":
		*t = MsgTAddPeer
	case "delPeer":
		*t = MsgTDelPeer
	case "processDualMessage":
		*t = MsgTProcessDualMessage
	case "updateFloodTopologyChild":
		*t = MsgTUpdateFloodTopologyChild
	case "getSpanningTreeInfos":
		*t = MsgTGetSpanningTreeInfos
	case "sendPublication":
		*t = MsgTSendPublication
	case "requestHashes":
		*t = MsgTRequestHashes
	case "requestValues":
		*t = MsgTRequestValues
	case "pushValues":
		*t = MsgTPushValues
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}
	return nil
}

package client

import (
	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/lib/store/area"
	"github.com/openr/kvstored/rpc/common"
	"github.com/openr/kvstored/rpc/serializer"
	"github.com/openr/kvstored/rpc/transport"
	"github.com/openr/kvstored/rpc/wire"
)

// DispatcherClient talks to a remote node's store.Dispatcher over RPC,
// replacing dKV's rpcStore/rpcLockMgr pair (rpc/client/client_istore.go,
// client_ilockmgr.go): one client type now, covering every area
// operation a Dispatcher exposes rather than a single-key store API.
type DispatcherClient struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// NewDispatcherClient connects transport using config and returns a
// client ready to issue Dispatcher requests against it.
func NewDispatcherClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*DispatcherClient, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}
	return &DispatcherClient{config: config, transport: transport, serializer: serializer}, nil
}

func (c *DispatcherClient) invoke(req *wire.Message) (*wire.Message, error) {
	return invoke(req, c.transport, c.serializer)
}

func (c *DispatcherClient) SetKeyVals(areaID kv.AreaID, keyVals map[string]kv.Value) (map[string]kv.Value, error) {
	resp, err := c.invoke(wire.NewSetKeyValsRequest(areaID, keyVals))
	if err != nil {
		return nil, err
	}
	return resp.KeyVals, nil
}

func (c *DispatcherClient) GetKeyVals(areaID kv.AreaID, keys []string) (map[string]kv.Value, error) {
	resp, err := c.invoke(wire.NewGetKeyValsRequest(areaID, keys))
	if err != nil {
		return nil, err
	}
	return resp.KeyVals, nil
}

func (c *DispatcherClient) DumpKeyVals(areaID kv.AreaID, prefixes, originators []string, operator kv.Operator) (map[string]kv.Value, error) {
	resp, err := c.invoke(wire.NewDumpKeyValsRequest(areaID, prefixes, originators, operator))
	if err != nil {
		return nil, err
	}
	return resp.KeyVals, nil
}

func (c *DispatcherClient) DumpHashes(areaID kv.AreaID, prefixes, originators []string, operator kv.Operator) (map[string]kv.Value, error) {
	resp, err := c.invoke(wire.NewDumpHashesRequest(areaID, prefixes, originators, operator))
	if err != nil {
		return nil, err
	}
	return resp.KeyVals, nil
}

func (c *DispatcherClient) GetPeers(areaID kv.AreaID) ([]string, error) {
	resp, err := c.invoke(wire.NewGetPeersRequest(areaID))
	if err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

func (c *DispatcherClient) AddPeer(areaID kv.AreaID, peerName string) error {
	_, err := c.invoke(wire.NewAddPeerRequest(areaID, peerName))
	return err
}

func (c *DispatcherClient) DelPeer(areaID kv.AreaID, peerName string) error {
	_, err := c.invoke(wire.NewDelPeerRequest(areaID, peerName))
	return err
}

func (c *DispatcherClient) ProcessDualMessage(areaID kv.AreaID, messages []area.DualMessage) error {
	_, err := c.invoke(wire.NewProcessDualMessageRequest(areaID, messages))
	return err
}

func (c *DispatcherClient) UpdateFloodTopologyChild(areaID kv.AreaID, rootID, peerName string, isChild bool) error {
	_, err := c.invoke(wire.NewUpdateFloodTopologyChildRequest(areaID, rootID, peerName, isChild))
	return err
}

func (c *DispatcherClient) GetSpanningTreeInfos(areaID kv.AreaID) ([]area.SpanningTreeInfo, error) {
	resp, err := c.invoke(wire.NewGetSpanningTreeInfosRequest(areaID))
	if err != nil {
		return nil, err
	}
	return resp.SpanningTrees, nil
}

// Close releases the underlying transport's connections.
func (c *DispatcherClient) Close() error {
	return c.transport.Close()
}

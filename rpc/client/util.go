package client

import (
	"fmt"

	"github.com/openr/kvstored/lib/log"
	"github.com/openr/kvstored/rpc/serializer"
	"github.com/openr/kvstored/rpc/transport"
	"github.com/openr/kvstored/rpc/wire"
)

var Logger = log.Get("rpc/client")

// invoke serializes req, sends it over transport, and deserializes the
// response, replacing dKV's shard-keyed invokeRPCRequest
// (rpc/client/util.go): there is no shard ID left to thread through,
// every client talks to exactly one remote Dispatcher through this
// transport.
func invoke(req *wire.Message, t transport.IRPCClientTransport, s serializer.IRPCSerializer) (*wire.Message, error) {
	reqBytes, err := s.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("rpc/client: serialize request: %w", err)
	}

	respBytes, err := t.Send(reqBytes)
	if err != nil {
		return nil, fmt.Errorf("rpc/client: send: %w", err)
	}

	var resp wire.Message
	if err := s.Deserialize(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("rpc/client: deserialize response: %w", err)
	}

	if resp.Err != "" {
		return nil, fmt.Errorf("rpc/client: %s", resp.Err)
	}

	return &resp, nil
}

package server

import (
	"fmt"
	"runtime"
	"os/signal"
	"syscall"

	"github.com/openr/kvstored/lib/log"
	"github.com/openr/kvstored/lib/store"
	"github.com/openr/kvstored/rpc/common"
	"github.com/openr/kvstored/rpc/serializer"
	"github.com/openr/kvstored/rpc/transport"
	"github.com/openr/kvstored/rpc/wire"
)

var Logger = log.Get("rpc/server")

// RPCServer exposes a single store.Dispatcher over one RPC transport.
// Unlike dKV's rpcServer, which fanned requests out across a shard map
// by shard ID, a node here runs exactly one Dispatcher over every area
// it is configured for; the wire.Message envelope itself carries the
// AreaID, so there is nothing left to route on but MsgType.
func NewRPCServer(
	config common.ServerConfig,
	dispatcher *store.Dispatcher,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("created RPC server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		dispatcher: dispatcher,
		transport:  transport,
		serializer: serializer,
	}
}

type RPCServer struct {
	config     common.ServerConfig
	dispatcher *store.Dispatcher
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req []byte) []byte {
		var msg wire.Message

		var respMsg *wire.Message
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = wire.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			respMsg = handle(s.dispatcher, &msg)
		}

		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			val, _ = s.serializer.Serialize(*wire.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
		}
		return val
	})
}

// Serve starts the RPC server. It registers the transport handler and
// then blocks listening for connections.
func (s *RPCServer) Serve() error {
	s.registerTransportHandler()
	Logger.Infof("store dispatcher ready, serving %d areas", len(s.config.AreaIDs))
	return s.transport.Listen(s.config)
}

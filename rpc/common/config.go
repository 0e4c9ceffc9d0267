package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/openr/kvstored/lib/kv"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the configuration for one RPC-server node. A node
// serves every area listed in AreaIDs through a single store.Dispatcher;
// there is no per-area transport or listener, per SPEC_FULL.md §6.2.
type ServerConfig struct {
	// AreaIDs are the areas this node's Dispatcher multiplexes. Informational
	// at the transport layer (used only for logging); the actual area
	// configuration lives in store.NodeConfig.
	AreaIDs []kv.AreaID

	// Endpoint is the address this node's RPC server listens on.
	Endpoint string

	// TimeoutSecond bounds how long a single request may take to read or
	// write before the connection is dropped. Zero disables the timeout.
	TimeoutSecond int64

	// TCP-specific socket tuning, read by the tcp serverConnector's
	// UpgradeConnection. The base server transport does not call it, so
	// these fields have no effect on accepted connections; unix and http
	// ignore them too.
	TCPNoDelay      bool
	WriteBufferSize int
	ReadBufferSize  int
	TCPKeepAliveSec int
	TCPLingerSec    int

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Areas")
	for _, id := range c.AreaIDs {
		addField(string(id), "served")
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration for a client (or peer) connecting
// to a remote node's Dispatcher.
type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}

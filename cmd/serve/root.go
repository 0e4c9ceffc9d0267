package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/openr/kvstored/cmd/util"
	"github.com/openr/kvstored/lib/log"
	"github.com/openr/kvstored/lib/store"
	"github.com/openr/kvstored/lib/store/gossip"
	"github.com/openr/kvstored/rpc/client"
	"github.com/openr/kvstored/rpc/common"
	"github.com/openr/kvstored/rpc/server"
	"github.com/openr/kvstored/rpc/transport"
	"github.com/openr/kvstored/rpc/transport/http"
	"github.com/openr/kvstored/rpc/transport/tcp"
	"github.com/openr/kvstored/rpc/transport/unix"
)

var logger = log.Get("cmd/serve")

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a node",
		Long:    `Start a node serving the areas listed in --config. The configuration can be set via command line flags, a JSON config file or environment variables. The format of the environment variables is OPENR_<flag> (e.g. OPENR_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "config"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Path to the node's JSON config file (nodeName, domain, areas, kvOptions). Falls back to OPENR_CONFIG"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the RPC server will listen (e.g. 0.0.0.0:8080, /tmp/kvstored.sock)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for a single RPC request"))

	key = "tcp-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the write buffer for the TCP transport (in KB)"))

	key = "tcp-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the read buffer for the TCP transport (in KB)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY for the TCP transport"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval for the TCP transport (in seconds)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The linger time for the TCP transport (in seconds)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "peer-timeout"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("Timeout in seconds for connecting to a peer"))

	key = "peer-retries"
	ServeCmd.PersistentFlags().Int(key, 3, cmdUtil.WrapString("How many times to retry a peer connection before giving up"))

	key = "peers"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated static peer table, name=endpoint pairs (e.g. node-b=tcp://10.0.0.2:8080). Used when --gossip-bind-addr is unset"))

	key = "gossip-bind-addr"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Bind address for the memberlist gossip transport. Empty disables gossip discovery in favor of --peers"))

	key = "gossip-bind-port"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Bind port for the memberlist gossip transport"))

	key = "gossip-seeds"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated memberlist seed addresses to join on startup"))
}

// processConfig reads the server-side configuration from the command
// line flags and environment variables.
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.WriteBufferSize = viper.GetInt("tcp-write-buffer") * 1024
	serveCmdConfig.ReadBufferSize = viper.GetInt("tcp-read-buffer") * 1024
	serveCmdConfig.TCPNoDelay = viper.GetBool("tcp-nodelay")
	serveCmdConfig.TCPKeepAliveSec = viper.GetInt("tcp-keepalive")
	serveCmdConfig.TCPLingerSec = viper.GetInt("tcp-linger")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

// run loads the node configuration, starts peer discovery, builds the
// Supervisor and Dispatcher on top of it, and serves the Dispatcher
// over RPC.
func run(_ *cobra.Command, _ []string) error {
	nodeCfg, err := store.LoadNodeConfig(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("failed to load node config: %w", err)
	}

	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	newClientTransport, err := clientTransportCtor()
	if err != nil {
		return err
	}

	resolver, membership, err := setupPeerDiscovery(nodeCfg)
	if err != nil {
		return err
	}

	peerFactory := client.NewPeerTransportFactory(
		resolver,
		newClientTransport,
		s,
		viper.GetInt("peer-timeout"),
		viper.GetInt("peer-retries"),
	)

	supervisor, err := store.NewSupervisor(*nodeCfg, peerFactory.ForArea)
	if err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}
	dispatcher := store.NewDispatcher(supervisor)
	serveCmdConfig.AreaIDs = supervisor.Areas()

	if membership != nil {
		membership.Bind(dispatcher, serveCmdConfig.AreaIDs)
		defer membership.Leave()
	}

	serverTransport, err := serverTransportFor(viper.GetString("transport"))
	if err != nil {
		return err
	}

	installShutdownHandler(membership)

	serv := server.NewRPCServer(*serveCmdConfig, dispatcher, serverTransport, s)
	return serv.Serve()
}

// clientTransportCtor returns a constructor for the transport kind a
// node uses both for its own client commands and for the peer-to-peer
// connections it opens to its neighbors.
func clientTransportCtor() (func() transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return func() transport.IRPCClientTransport { return http.NewHttpClientTransport() }, nil
	case "tcp":
		return func() transport.IRPCClientTransport { return tcp.NewTCPClientTransport() }, nil
	case "unix":
		return func() transport.IRPCClientTransport { return unix.NewUnixClientTransport() }, nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

func serverTransportFor(kind string) (transport.IRPCServerTransport, error) {
	switch kind {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixDefaultServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", kind)
	}
}

// setupPeerDiscovery builds the PeerResolver a node's peer transport
// factory uses: gossip via hashicorp/memberlist when --gossip-bind-addr
// is set, otherwise a static --peers table. The returned *gossip.Membership
// is nil in the static case.
func setupPeerDiscovery(nodeCfg *store.NodeConfig) (client.PeerResolver, *gossip.Membership, error) {
	bindAddr := viper.GetString("gossip-bind-addr")
	if bindAddr == "" {
		table := client.StaticPeerResolver{}
		if peers := viper.GetString("peers"); peers != "" {
			for _, entry := range strings.Split(peers, ",") {
				parts := strings.SplitN(entry, "=", 2)
				if len(parts) != 2 {
					return nil, nil, fmt.Errorf("invalid peer entry %q (expected name=endpoint)", entry)
				}
				table[parts[0]] = parts[1]
			}
		}
		return table, nil, nil
	}

	var seeds []string
	if s := viper.GetString("gossip-seeds"); s != "" {
		seeds = strings.Split(s, ",")
	}

	membership, err := gossip.NewMembership(gossip.Config{
		NodeName:    nodeCfg.NodeName,
		RPCEndpoint: serveCmdConfig.Endpoint,
		BindAddr:    bindAddr,
		BindPort:    viper.GetInt("gossip-bind-port"),
		Seeds:       seeds,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start gossip membership: %w", err)
	}
	return membership, membership, nil
}

// installShutdownHandler announces departure to the gossip cluster, if
// any, before the process exits on SIGINT/SIGTERM.
func installShutdownHandler(membership *gossip.Membership) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		if membership != nil {
			if err := membership.Leave(); err != nil {
				logger.Warnf("error leaving gossip cluster: %v", err)
			}
		}
		os.Exit(0)
	}()
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("openr")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

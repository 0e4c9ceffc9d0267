package kv

import (
	"github.com/spf13/cobra"

	"github.com/openr/kvstored/cmd/util"
	"github.com/openr/kvstored/rpc/client"
)

var (
	dispatcherClient *client.DispatcherClient

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform area key-value operations against a running node",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(dumpCmd)
	KeyValueCommands.AddCommand(dumpHashesCmd)
	KeyValueCommands.AddCommand(peersCmd)
	KeyValueCommands.AddCommand(addPeerCmd)
	KeyValueCommands.AddCommand(delPeerCmd)
	KeyValueCommands.AddCommand(spanningTreeCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the RPC DispatcherClient shared by every kv subcommand.
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	dispatcherClient, err = client.NewDispatcherClient(*config, t, s)
	return err
}

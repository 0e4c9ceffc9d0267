package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openr/kvstored/cmd/kv"
	"github.com/openr/kvstored/cmd/serve"
	"github.com/openr/kvstored/cmd/util"
)

const (
	Version = "1.0.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvstored",
		Short: "epidemic-flooding key-value store",
		Long: fmt.Sprintf(`kvstored (v%s)

A distributed key-value store that replicates via epidemic flooding
across configured areas, in the style of Open/R's KvStore.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvstored",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvstored v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

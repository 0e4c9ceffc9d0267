package kv

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openr/kvstored/cmd/util"
	"github.com/openr/kvstored/lib/kv"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key in the configured area",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			areaID, err := util.GetAreaID()
			if err != nil {
				return err
			}
			key, value := args[0], args[1]

			originator, _ := cmd.Flags().GetString("originator")
			version, _ := cmd.Flags().GetUint64("version")
			ttlMs, _ := cmd.Flags().GetInt64("ttl-ms")

			v := kv.Value{
				Version:      version,
				OriginatorID: originator,
				Body:         kv.FullBody([]byte(value)),
				TTLMs:        ttlMs,
			}

			applied, err := dispatcherClient.SetKeyVals(areaID, map[string]kv.Value{key: v})
			if err != nil {
				return err
			}
			if _, ok := applied[key]; ok {
				fmt.Println("set successfully")
			} else {
				fmt.Println("value was not applied (rejected by the area's merge: filter, ttl, or not newer than the current entry)")
			}
			return nil
		},
	}

	getCmd = &cobra.Command{
		Use:   "get [key...]",
		Short: "Reads the value for one or more keys in the configured area",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			areaID, err := util.GetAreaID()
			if err != nil {
				return err
			}
			vals, err := dispatcherClient.GetKeyVals(areaID, args)
			if err != nil {
				return err
			}
			for _, key := range args {
				v, ok := vals[key]
				if !ok {
					fmt.Printf("key=%s, found=false\n", key)
					continue
				}
				printValue(key, v)
			}
			return nil
		},
	}

	dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Dumps every key-value pair in the configured area matching --prefix/--originator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			areaID, prefixes, originators, op, err := dumpFilterArgs(cmd)
			if err != nil {
				return err
			}
			vals, err := dispatcherClient.DumpKeyVals(areaID, prefixes, originators, op)
			if err != nil {
				return err
			}
			for key, v := range vals {
				printValue(key, v)
			}
			fmt.Printf("%d entries\n", len(vals))
			return nil
		},
	}

	dumpHashesCmd = &cobra.Command{
		Use:   "dumphashes",
		Short: "Dumps hashes (not values) of every key matching --prefix/--originator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			areaID, prefixes, originators, op, err := dumpFilterArgs(cmd)
			if err != nil {
				return err
			}
			vals, err := dispatcherClient.DumpHashes(areaID, prefixes, originators, op)
			if err != nil {
				return err
			}
			for key, v := range vals {
				fmt.Printf("key=%s, version=%d, originator=%s, hash=%d\n", key, v.Version, v.OriginatorID, v.Body.Hash)
			}
			fmt.Printf("%d entries\n", len(vals))
			return nil
		},
	}

	peersCmd = &cobra.Command{
		Use:   "peers",
		Short: "Lists the peers configured for the configured area",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			areaID, err := util.GetAreaID()
			if err != nil {
				return err
			}
			peers, err := dispatcherClient.GetPeers(areaID)
			if err != nil {
				return err
			}
			for _, p := range peers {
				fmt.Println(p)
			}
			return nil
		},
	}

	addPeerCmd = &cobra.Command{
		Use:   "addpeer [peerName]",
		Short: "Registers a peer on the configured area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			areaID, err := util.GetAreaID()
			if err != nil {
				return err
			}
			if err := dispatcherClient.AddPeer(areaID, args[0]); err != nil {
				return err
			}
			fmt.Println("peer added")
			return nil
		},
	}

	delPeerCmd = &cobra.Command{
		Use:   "delpeer [peerName]",
		Short: "Removes a peer from the configured area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			areaID, err := util.GetAreaID()
			if err != nil {
				return err
			}
			if err := dispatcherClient.DelPeer(areaID, args[0]); err != nil {
				return err
			}
			fmt.Println("peer removed")
			return nil
		},
	}

	spanningTreeCmd = &cobra.Command{
		Use:   "spanningtree",
		Short: "Prints the Dual spanning-tree state of the configured area",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			areaID, err := util.GetAreaID()
			if err != nil {
				return err
			}
			infos, err := dispatcherClient.GetSpanningTreeInfos(areaID)
			if err != nil {
				return err
			}
			for _, info := range infos {
				fmt.Printf("root=%s, cost=%d, parent=%s, children=%s\n", info.Root, info.Cost, info.Parent, strings.Join(info.Children, ","))
			}
			return nil
		},
	}
)

func init() {
	key := "originator"
	setCmd.Flags().String(key, "cli", util.WrapString("OriginatorID to attach to the value"))
	key = "version"
	setCmd.Flags().Uint64(key, 1, util.WrapString("Version to attach to the value"))
	key = "ttl-ms"
	setCmd.Flags().Int64(key, 5*60*1000, util.WrapString("TTL in milliseconds to attach to the value"))

	key = "prefix"
	dumpCmd.Flags().String(key, "", util.WrapString("Comma-separated key prefixes to filter on"))
	key = "originators"
	dumpCmd.Flags().String(key, "", util.WrapString("Comma-separated originator IDs to filter on"))
	key = "op"
	dumpCmd.Flags().String(key, "OR", util.WrapString("How to combine --prefix and --originators (OR, AND)"))

	dumpHashesCmd.Flags().AddFlagSet(dumpCmd.Flags())
}

// dumpFilterArgs reads the area and filter flags shared by dump and dumphashes.
func dumpFilterArgs(cmd *cobra.Command) (areaID kv.AreaID, prefixes, originators []string, op kv.Operator, err error) {
	areaID, err = util.GetAreaID()
	if err != nil {
		return
	}

	if p, _ := cmd.Flags().GetString("prefix"); p != "" {
		prefixes = strings.Split(p, ",")
	}
	if o, _ := cmd.Flags().GetString("originators"); o != "" {
		originators = strings.Split(o, ",")
	}

	opFlag, _ := cmd.Flags().GetString("op")
	if strings.EqualFold(opFlag, "AND") {
		op = kv.OperatorAND
	} else {
		op = kv.OperatorOR
	}
	return
}

func printValue(key string, v kv.Value) {
	body := "<hash-only>"
	if v.Body.HasValue() {
		body = string(v.Body.Bytes)
	}
	fmt.Printf("key=%s, version=%d, originator=%s, ttlMs=%d, value=%s\n", key, v.Version, v.OriginatorID, v.TTLMs, body)
}

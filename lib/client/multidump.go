// Package client provides diagnostic helpers that talk to a Store's
// Dispatcher as a remote client, rather than embedding one.
package client

import (
	"fmt"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/rpc/client"
	"github.com/openr/kvstored/rpc/common"
	"github.com/openr/kvstored/rpc/serializer"
	"github.com/openr/kvstored/rpc/transport"
)

// perEndpointLatency tracks how long a single dumpOne call takes,
// separately from DumpAllFromMultiple's overall wall-clock (which is
// bounded by the slowest endpoint, not representative of a "typical"
// dump). rcrowley/go-metrics' Timer carries count/rate/percentiles,
// which VictoriaMetrics/metrics' plain Counter/Gauge don't.
var perEndpointLatency = gometrics.GetOrRegisterTimer("kvstore.client.multidump.endpoint_latency", gometrics.DefaultRegistry)

// MultiDumpRequest describes one area dump to fan out across N remote
// Stores, per spec.md §4.9.
type MultiDumpRequest struct {
	AreaID         kv.AreaID
	Prefixes       []string
	Originators    []string
	Operator       kv.Operator
	ConnectTimeout time.Duration
	ProcessTimeout time.Duration
	NewTransport   func() transport.IRPCClientTransport
	Serializer     serializer.IRPCSerializer

	// Parse, if set, is run against every full-bodied value an endpoint
	// returns, per spec.md §4.9's "optionally parse values as a typed
	// payload". A parse failure is treated as unreachable-equivalent:
	// the whole endpoint's response is dropped from the merge and its
	// name added to Unreachable, rather than merging in a value the
	// caller can't make sense of.
	Parse func([]byte) error
}

// MultiDumpResult is the outcome of fanning a dump out across a set of
// endpoints: the merged view and the subset that could not be reached
// (connect failure, timeout, or RPC error are all unreachable-equivalent).
type MultiDumpResult struct {
	KeyVals     map[string]kv.Value
	Unreachable []string
}

// DumpAllFromMultiple connects to every endpoint in parallel, each dump
// RPC bounded by one request timeout (see dumpOne; the connect itself has
// no deadline of its own), and merges every successful response into one accumulator
// using the Value Arbiter (kv.Compare) — the same total order the Store
// uses for its own peer merges, without TTL policy since these are
// snapshots rather than a subscription. If req.Parse is set, an
// endpoint whose values fail to parse is treated the same as an
// unreachable endpoint: dropped from the merge, named in Unreachable.
//
// Grounded on Open/R's dumpAllWithThriftClientFromMultiple
// (original_source/openr/kvstore/KvStoreUtil.h): connect-parallel,
// per-store timeout, Arbiter merge, unreachable list. sourcegraph/conc's
// pool replaces that function's manual thread fan-out; go.uber.org/multierr
// is not used to abort the dump (one failed endpoint must not sink the
// others) but to report every connect/RPC error to the caller alongside
// the unreachable list.
func DumpAllFromMultiple(endpoints []string, req MultiDumpRequest) (MultiDumpResult, error) {
	type outcome struct {
		endpoint string
		keyVals  map[string]kv.Value
		err      error
	}

	p := pool.NewWithResults[outcome]()
	for _, endpoint := range endpoints {
		endpoint := endpoint
		p.Go(func() outcome {
			keyVals, err := dumpOne(endpoint, req)
			return outcome{endpoint: endpoint, keyVals: keyVals, err: err}
		})
	}
	outcomes := p.Wait()

	result := MultiDumpResult{KeyVals: make(map[string]kv.Value)}
	var errs error
	for _, o := range outcomes {
		if o.err != nil {
			result.Unreachable = append(result.Unreachable, o.endpoint)
			errs = multierr.Append(errs, o.err)
			continue
		}
		mergeInto(result.KeyVals, o.keyVals)
	}
	return result, errs
}

// dumpOne connects to a single endpoint and issues the dump. The RPC
// transport's ClientConfig has a single TimeoutSecond, taken from
// req.ProcessTimeout, or from req.ConnectTimeout when ProcessTimeout is
// under one second; it bounds each request, and the connect is not
// bounded separately, since the transports here have no
// context-cancellable Send. A timed-out RPC surfaces as a plain error,
// which DumpAllFromMultiple treats as unreachable.
func dumpOne(endpoint string, req MultiDumpRequest) (map[string]kv.Value, error) {
	start := time.Now()
	defer func() { perEndpointLatency.UpdateSince(start) }()

	cfg := common.ClientConfig{
		Endpoints:              []string{endpoint},
		TimeoutSecond:          int(req.ProcessTimeout / time.Second),
		ConnectionsPerEndpoint: 1,
	}
	if cfg.TimeoutSecond == 0 {
		cfg.TimeoutSecond = int(req.ConnectTimeout / time.Second)
	}

	c, err := client.NewDispatcherClient(cfg, req.NewTransport(), req.Serializer)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	keyVals, err := c.DumpKeyVals(req.AreaID, req.Prefixes, req.Originators, req.Operator)
	if err != nil {
		return nil, err
	}

	if req.Parse != nil {
		for key, v := range keyVals {
			if !v.Body.HasValue() {
				continue
			}
			if parseErr := req.Parse(v.Body.Bytes); parseErr != nil {
				return nil, fmt.Errorf("parse %s.%s: %w", endpoint, key, parseErr)
			}
		}
	}

	return keyVals, nil
}

// mergeInto folds src into dst using the Value Arbiter: dst keeps
// whichever side Compare ranks higher, and an Unknown outcome (a
// hash-only body racing a full one) leaves the existing entry in place
// rather than guessing.
func mergeInto(dst, src map[string]kv.Value) {
	for key, incoming := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = incoming
			continue
		}
		switch kv.Compare(incoming, existing) {
		case kv.AWins:
			dst[key] = incoming
		case kv.BWins, kv.Equal, kv.Unknown:
			// keep existing
		}
	}
}

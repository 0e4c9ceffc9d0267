package area

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"

	"github.com/openr/kvstored/lib/kv"
)

// areaMetrics holds the counters exposed for one area's command loop,
// each named kvstore_<metric>_total{area="<areaID>"} so a node serving
// several areas exposes one series per area per metric, scraped the way
// any VictoriaMetrics/metrics process is: metrics.WritePrometheus on an
// HTTP handler the operator wires up outside this package.
type areaMetrics struct {
	mergeDeltas  *metrics.Counter
	ttlEvictions *metrics.Counter
	peerResyncs  *metrics.Counter
}

func newAreaMetrics(areaID kv.AreaID) *areaMetrics {
	return &areaMetrics{
		mergeDeltas:  metrics.GetOrCreateCounter(fmt.Sprintf(`kvstore_merge_deltas_total{area=%q}`, areaID)),
		ttlEvictions: metrics.GetOrCreateCounter(fmt.Sprintf(`kvstore_ttl_evictions_total{area=%q}`, areaID)),
		peerResyncs:  metrics.GetOrCreateCounter(fmt.Sprintf(`kvstore_peer_resyncs_total{area=%q}`, areaID)),
	}
}

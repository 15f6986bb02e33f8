// internal/metrics/snapshot.go
// Snapshot readers pull current values back out of the registered
// collectors so a scrape-interval alert loop can evaluate rules without
// scraping its own /metrics endpoint over HTTP.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

func gaugeValue(g prometheus.Gauge) float64 {
    var m dto.Metric
    _ = g.Write(&m)
    return m.GetGauge().GetValue()
}

func counterValue(c prometheus.Counter) float64 {
    var m dto.Metric
    _ = c.Write(&m)
    return m.GetCounter().GetValue()
}

// counterVecTotal sums every label combination currently recorded on v.
func counterVecTotal(v *prometheus.CounterVec) float64 {
    ch := make(chan prometheus.Metric)
    go func() {
        v.Collect(ch)
        close(ch)
    }()
    var total float64
    for m := range ch {
        var dm dto.Metric
        _ = m.Write(&dm)
        total += dm.GetCounter().GetValue()
    }
    return total
}

// BrokerSnapshot reports the broker's current gauge/counter values keyed by
// the names its alert rules reference.
func BrokerSnapshot() map[string]float64 {
    return map[string]float64{
        "waiting_slots":       gaugeValue(BrokerWaitingSlots),
        "active_pairs":        gaugeValue(BrokerActivePairs),
        "registrations_total": counterValue(BrokerRegistrationsTotal),
        "rejections_total":    counterVecTotal(BrokerRejectionsTotal),
        "bytes_piped_total":   counterValue(BrokerBytesPipedTotal),
    }
}

// GatewaySnapshot reports the gateway's current gauge/counter values keyed
// by the names its alert rules reference.
func GatewaySnapshot() map[string]float64 {
    return map[string]float64{
        "subscriptions_active": gaugeValue(GatewaySubscriptionsActive),
        "uploads_active":       gaugeValue(GatewayUploadsActive),
        "connections_active":   gaugeValue(GatewayConnectionsActive),
        "requests_total":       counterVecTotal(GatewayRequestsTotal),
        "auth_failures_total":  counterVecTotal(GatewayAuthFailuresTotal),
        "upload_errors_total":  counterVecTotal(GatewayUploadErrorsTotal),
        "frame_errors_total":   counterVecTotal(GatewayFrameErrorsTotal),
    }
}

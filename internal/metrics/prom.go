// internal/metrics/prom.go
// Package metrics centralises Prometheus metric registration for both
// yepanywhere binaries (broker, gateway).  It exposes typed collectors so
// that code can remain import-cycle‑free.  The package registers with the
// global prometheus.DefaultRegisterer, which callers typically expose via the
// /metrics HTTP handler from the Prometheus client library.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    // Broker gauges -----------------------------------------------------------
    BrokerWaitingSlots = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "yep",
        Subsystem: "broker",
        Name:      "waiting_slots",
        Help:      "Number of origins currently registered and awaiting a client pairing.",
    })

    BrokerActivePairs = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "yep",
        Subsystem: "broker",
        Name:      "active_pairs",
        Help:      "Number of origin/client socket pairs currently being piped.",
    })

    // Broker counters ---------------------------------------------------------
    BrokerRegistrationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "yep",
        Subsystem: "broker",
        Name:      "registrations_total",
        Help:      "Total number of successful server_register acceptances.",
    })

    BrokerRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "yep",
        Subsystem: "broker",
        Name:      "rejections_total",
        Help:      "Total number of rejected registrations/connects, by reason.",
    }, []string{"reason"})

    BrokerBytesPipedTotal = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "yep",
        Subsystem: "broker",
        Name:      "bytes_piped_total",
        Help:      "Total bytes forwarded across paired sockets in both directions.",
    })

    // Gateway gauges ------------------------------------------------------------
    GatewaySubscriptionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "yep",
        Subsystem: "gateway",
        Name:      "subscriptions_active",
        Help:      "Current number of open subscriptions across all connections.",
    })

    GatewayUploadsActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "yep",
        Subsystem: "gateway",
        Name:      "uploads_active",
        Help:      "Current number of in-flight uploads across all connections.",
    })

    GatewayConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "yep",
        Subsystem: "gateway",
        Name:      "connections_active",
        Help:      "Current number of open gateway WebSocket connections, authenticated or not.",
    })

    // Gateway counters ------------------------------------------------------------
    GatewayRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "yep",
        Subsystem: "gateway",
        Name:      "requests_total",
        Help:      "Total number of request messages routed to the local HTTP mux, by method.",
    }, []string{"method"})

    GatewayAuthFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "yep",
        Subsystem: "gateway",
        Name:      "auth_failures_total",
        Help:      "Total number of SRP handshake failures, by reason (invalid_identity, invalid_proof).",
    }, []string{"reason"})

    GatewayUploadErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "yep",
        Subsystem: "gateway",
        Name:      "upload_errors_total",
        Help:      "Total number of uploads torn down via upload_error, by reason.",
    }, []string{"reason"})

    GatewayFrameErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "yep",
        Subsystem: "gateway",
        Name:      "frame_errors_total",
        Help:      "Total number of dropped frames, by codec error kind.",
    }, []string{"kind"})
)

// Register exports all metrics; safe to call multiple times.
func Register() {
    once.Do(func() {
        prometheus.MustRegister(
            BrokerWaitingSlots,
            BrokerActivePairs,
            BrokerRegistrationsTotal,
            BrokerRejectionsTotal,
            BrokerBytesPipedTotal,
            GatewaySubscriptionsActive,
            GatewayUploadsActive,
            GatewayConnectionsActive,
            GatewayRequestsTotal,
            GatewayAuthFailuresTotal,
            GatewayUploadErrorsTotal,
            GatewayFrameErrorsTotal,
        )
    })
}

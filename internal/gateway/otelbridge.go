// internal/gateway/otelbridge.go
// Correlates gateway request/subscription ids to OpenTelemetry spans by
// stashing the caller-supplied id as a span attribute. Disabled (no-op
// tracer) unless the embedder registers a real TracerProvider via
// otel.SetTracerProvider.
package gateway

import "go.opentelemetry.io/otel/attribute"

func correlationAttr(id string) attribute.KeyValue {
    return attribute.String("yep.correlation_id", id)
}

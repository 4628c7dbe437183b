package coordinator

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type coordinatorMetricsCollection struct {
	requests         metric.Int64Counter
	fetches          metric.Int64Counter
	staleDeliveries  metric.Int64Counter
	reclaimedEntries metric.Int64Counter
}

var metrics coordinatorMetricsCollection

func init() {
	const name = "mediacache/coordinator"
	meter := otel.Meter(name)

	requests, err := meter.Int64Counter(
		"mediacache/requests",
		metric.WithDescription("Requests handled by the coordinator, by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create requests metric: %w", err))
	}

	fetches, err := meter.Int64Counter(
		"mediacache/fetches",
		metric.WithDescription("Completed fetches, by result and source"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create fetches metric: %w", err))
	}

	staleDeliveries, err := meter.Int64Counter(
		"mediacache/stale_deliveries",
		metric.WithDescription("Completions dropped because the consumer was rebound"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create stale deliveries metric: %w", err))
	}

	reclaimedEntries, err := meter.Int64Counter(
		"mediacache/reclaimed_entries",
		metric.WithDescription("Live entries reclaimed by memory pressure"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create reclaimed entries metric: %w", err))
	}

	metrics = coordinatorMetricsCollection{
		requests:         requests,
		fetches:          fetches,
		staleDeliveries:  staleDeliveries,
		reclaimedEntries: reclaimedEntries,
	}
}

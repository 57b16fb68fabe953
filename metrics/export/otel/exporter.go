// Package otel bridges the engine's lock-free metric registry onto
// OpenTelemetry observable instruments.  The exporter is pull-based: a
// single registered callback snapshots the registry when the OTel reader
// collects, so the hot path never sees the exporter at all.
package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"main/metrics"
	"main/utils"
)

var (
	// ErrNilMeter rejects construction without a meter.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilRegistry rejects construction without a source registry.
	ErrNilRegistry = errors.New("nil metrics registry")
)

// Exporter owns the observable instruments and their registration.
type Exporter struct {
	source       *metrics.Registry
	registration metric.Registration

	counters    [metrics.NumCounters]metric.Int64ObservableCounter
	cardinality [len(metrics.CardinalityBuckets)]metric.Int64ObservableGauge
	poolInUse   metric.Int64ObservableGauge
	syncPending metric.Int64ObservableGauge
}

// New registers every engine counter, the candidate-cardinality buckets and
// the occupancy gauges on the given meter.
func New(meter metric.Meter, source *metrics.Registry) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilRegistry
	}

	e := &Exporter{source: source}
	observables := make([]metric.Observable, 0, metrics.NumCounters+len(metrics.CardinalityBuckets)+2)

	for i := 0; i < metrics.NumCounters; i++ {
		id := metrics.ID(i)
		ins, err := meter.Int64ObservableCounter("hookmatch_" + id.Name())
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", id.Name(), err)
		}
		e.counters[i] = ins
		observables = append(observables, ins)
	}

	for i, bound := range metrics.CardinalityBuckets {
		name := "hookmatch_candidate_cardinality_le_" + utils.Itoa(bound)
		if i == len(metrics.CardinalityBuckets)-1 {
			name = "hookmatch_candidate_cardinality_le_inf"
		}
		ins, err := meter.Int64ObservableGauge(name,
			metric.WithDescription("Candidate bitmask cardinality distribution bucket."))
		if err != nil {
			return nil, fmt.Errorf("create cardinality bucket %d: %w", bound, err)
		}
		e.cardinality[i] = ins
		observables = append(observables, ins)
	}

	var err error
	if e.poolInUse, err = meter.Int64ObservableGauge("hookmatch_pool_in_use",
		metric.WithDescription("Buffer pool slots currently acquired.")); err != nil {
		return nil, fmt.Errorf("create pool gauge: %w", err)
	}
	observables = append(observables, e.poolInUse)

	if e.syncPending, err = meter.Int64ObservableGauge("hookmatch_sync_pending",
		metric.WithDescription("Synchronization dispatches currently held open.")); err != nil {
		return nil, fmt.Errorf("create sync gauge: %w", err)
	}
	observables = append(observables, e.syncPending)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	s := e.source.SnapshotNow()
	for i := range e.counters {
		o.ObserveInt64(e.counters[i], int64(s.Counters[i]))
	}
	for i := range e.cardinality {
		o.ObserveInt64(e.cardinality[i], int64(s.Cardinality[i]))
	}
	o.ObserveInt64(e.poolInUse, s.PoolInUse)
	o.ObserveInt64(e.syncPending, int64(s.SyncPending))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is satisfied by *jwtauth.Engine.
type Source interface {
	MetricsSnapshot() jwtauth.MetricsSnapshot
	AuditDropped() uint64
}

// latency holds the instruments of one token path's latency histogram. Each
// bucket is one point of the bucket gauge, told apart by its le attribute.
type latency struct {
	id      jwtauth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// leOptions are the per-bucket attribute sets, built once.
var leOptions = func() []metric.ObserveOption {
	out := make([]metric.ObserveOption, len(internaldefs.HistogramBounds))
	for i, bound := range internaldefs.HistogramBounds {
		out[i] = metric.WithAttributes(attribute.String("le", bound))
	}
	return out
}()

// Exporter publishes the obtain, refresh, verify and blacklist counters of an
// engine together with its latency buckets. Values are read from the engine
// snapshot inside the collection callback, never pushed.
type Exporter struct {
	source       Source
	registration metric.Registration

	flows   map[jwtauth.MetricID]metric.Int64ObservableCounter
	latency []latency
	dropped metric.Int64ObservableCounter
}

// New registers the engine's instruments on meter.
func New(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source: source,
		flows:  make(map[jwtauth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	var observed []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.flows[def.ID] = c
		observed = append(observed, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per le bound."),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			return nil, fmt.Errorf("latency buckets %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			return nil, fmt.Errorf("latency count %s: %w", def.Name, err)
		}
		e.latency = append(e.latency, latency{id: def.ID, buckets: buckets, count: count})
		observed = append(observed, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events lost because the dispatcher queue was full."))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.dropped = dropped
	observed = append(observed, dropped)

	reg, err := meter.RegisterCallback(e.observe, observed...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

// observe reports one engine snapshot. Token paths the engine has not hit yet
// report zero.
func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, c := range e.flows {
		o.ObserveInt64(c, int64(snap.Counters[id]))
	}
	for _, l := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[l.id]))
		for i, v := range cumulative {
			o.ObserveInt64(l.buckets, int64(v), leOptions[i])
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. The instruments stay on the meter but stop
// reporting.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

// Package metrics records transaction outcomes as OpenTelemetry counters.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fairyhunter13/payments-engine/internal/ledger"
	"github.com/fairyhunter13/payments-engine/internal/model"
)

const meterName = "github.com/fairyhunter13/payments-engine"

const (
	MetricProcessedTotal = "transactions_processed_total"
	MetricRejectedTotal  = "transactions_rejected_total"
)

// Recorder counts processed and rejected transactions.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	processed metric.Int64Counter
	rejected  metric.Int64Counter

	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// NewSDKRecorder creates a Recorder on its own SDK meter provider, backed by
// a manual reader so Totals can report the counters in process. The provider
// is also installed as the global one.
func NewSDKRecorder() (*Recorder, error) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := NewRecorder(mp)
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, err
	}
	otel.SetMeterProvider(mp)
	r.reader = reader
	r.provider = mp
	return r, nil
}

// NewRecorder creates the counters on mp, or on the global provider when mp
// is nil. Without a configured SDK the global provider is a no-op.
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	processed, err := meter.Int64Counter(MetricProcessedTotal,
		metric.WithUnit("1"),
		metric.WithDescription("Total number of transactions processed by a shard"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", MetricProcessedTotal, err)
	}
	rejected, err := meter.Int64Counter(MetricRejectedTotal,
		metric.WithUnit("1"),
		metric.WithDescription("Total number of transactions rejected, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", MetricRejectedTotal, err)
	}
	return &Recorder{processed: processed, rejected: rejected}, nil
}

// Record adds one outcome to the counters.
func (r *Recorder) Record(ctx context.Context, o model.Outcome) {
	if r == nil {
		return
	}
	status := "applied"
	if !o.OK() {
		status = "rejected"
	}
	r.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", o.Kind.String()),
		attribute.String("status", status),
		attribute.Int("shard", o.Shard),
	))
	if o.OK() {
		return
	}
	r.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", o.Kind.String()),
		attribute.String("reason", Reason(o.Err)),
	))
}

// Reason maps an outcome error to a stable label.
func Reason(err error) string {
	var kind ledger.ErrorKind
	if errors.As(err, &kind) {
		return kind.Code()
	}
	return "internal"
}

// Totals collects the counters and sums their data points by metric name.
// It returns nil for recorders not created by NewSDKRecorder.
func (r *Recorder) Totals(ctx context.Context) (map[string]int64, error) {
	if r == nil || r.reader == nil {
		return nil, nil
	}
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}
	totals := map[string]int64{
		MetricProcessedTotal: 0,
		MetricRejectedTotal:  0,
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals, nil
}

// Shutdown flushes and stops the provider owned by the recorder, if any.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}

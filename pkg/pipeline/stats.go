package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// PipelineStatsSource is anything that can produce an absolute snapshot of
// the pipeline's live figures (queue depths, active workers). *Pipeline
// satisfies this.
type PipelineStatsSource interface {
	Stats() PipelineStats
}

// StatsRecorder publishes PipelineStats counters to an OpenTelemetry Meter,
// matching the instrument-per-counter style used for metrics exposition
// elsewhere in the corpus. Construct with NewStatsRecorder and call the
// RecordX methods as the pipeline's components observe each event; reading
// the instruments back is left to whatever Prometheus/OTLP reader the host
// process configures on the MeterProvider. The three live figures
// (text_q_depth, audio_q_depth, active_workers) are registered as
// observable gauges instead, since they rise and fall rather than only
// accumulate.
type StatsRecorder struct {
	segmentsEmitted   metric.Int64Counter
	chunksSynthesized metric.Int64Counter
	chunksFailed      metric.Int64Counter
	chunksPlayed      metric.Int64Counter
	chunksDropped     metric.Int64Counter
	retriesAttempted  metric.Int64Counter
	interruptsHandled metric.Int64Counter

	textQDepth    metric.Int64ObservableGauge
	audioQDepth   metric.Int64ObservableGauge
	activeWorkers metric.Int64ObservableGauge
}

// NewStatsRecorder creates the counter and gauge instruments on meter, which
// the caller obtains from whatever MeterProvider it configures (cmd/agent
// does not construct one). source, if non-nil, is polled once per collection to
// populate the gauge instruments; pass nil to only register the
// event-driven counters.
func NewStatsRecorder(meter metric.Meter, source PipelineStatsSource) (*StatsRecorder, error) {
	var err error
	r := &StatsRecorder{}

	if r.segmentsEmitted, err = meter.Int64Counter("pipeline.segments_emitted"); err != nil {
		return nil, err
	}
	if r.chunksSynthesized, err = meter.Int64Counter("pipeline.chunks_synthesized"); err != nil {
		return nil, err
	}
	if r.chunksFailed, err = meter.Int64Counter("pipeline.chunks_failed"); err != nil {
		return nil, err
	}
	if r.chunksPlayed, err = meter.Int64Counter("pipeline.chunks_played"); err != nil {
		return nil, err
	}
	if r.chunksDropped, err = meter.Int64Counter("pipeline.chunks_dropped"); err != nil {
		return nil, err
	}
	if r.retriesAttempted, err = meter.Int64Counter("pipeline.retries_attempted"); err != nil {
		return nil, err
	}
	if r.interruptsHandled, err = meter.Int64Counter("pipeline.interrupts_handled"); err != nil {
		return nil, err
	}

	if r.textQDepth, err = meter.Int64ObservableGauge("pipeline.text_q_depth"); err != nil {
		return nil, err
	}
	if r.audioQDepth, err = meter.Int64ObservableGauge("pipeline.audio_q_depth"); err != nil {
		return nil, err
	}
	if r.activeWorkers, err = meter.Int64ObservableGauge("pipeline.active_workers"); err != nil {
		return nil, err
	}

	if source != nil {
		_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			snap := source.Stats()
			o.ObserveInt64(r.textQDepth, snap.TextQDepth)
			o.ObserveInt64(r.audioQDepth, snap.AudioQDepth)
			o.ObserveInt64(r.activeWorkers, snap.ActiveWorkers)
			return nil
		}, r.textQDepth, r.audioQDepth, r.activeWorkers)
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *StatsRecorder) RecordSegmentEmitted(ctx context.Context) {
	r.segmentsEmitted.Add(ctx, 1)
}

func (r *StatsRecorder) RecordChunkSynthesized(ctx context.Context) {
	r.chunksSynthesized.Add(ctx, 1)
}

func (r *StatsRecorder) RecordChunkFailed(ctx context.Context) {
	r.chunksFailed.Add(ctx, 1)
}

func (r *StatsRecorder) RecordChunkPlayed(ctx context.Context) {
	r.chunksPlayed.Add(ctx, 1)
}

func (r *StatsRecorder) RecordChunkDropped(ctx context.Context) {
	r.chunksDropped.Add(ctx, 1)
}

func (r *StatsRecorder) RecordRetryAttempted(ctx context.Context) {
	r.retriesAttempted.Add(ctx, 1)
}

func (r *StatsRecorder) RecordInterruptHandled(ctx context.Context) {
	r.interruptsHandled.Add(ctx, 1)
}

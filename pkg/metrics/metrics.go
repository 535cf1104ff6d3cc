// Package metrics holds the Prometheus collectors of a clgrpell run.
// The coordinator serves them at /metrics; in-process runs share the
// default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"clgrpell/pkg/types"
)

const namespace = "clgrpell"

var (
	// shardsTotal counts finished shards.
	// Labels: status (done, skipped, failed, fatal)
	shardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "shards_total",
		Help:      "Shards processed by outcome",
	}, []string{"status"})

	shardDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "shard_duration_seconds",
		Help:      "Wall time of one shard",
		Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
	})

	// linesTotal counts extended discriminants.
	// Labels: kron (inert, ramified, split)
	linesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "lines_total",
		Help:      "Input lines extended, by splitting behaviour of ell",
	}, []string{"kron"})

	malformedLines = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "malformed_lines_total",
		Help:      "Input lines skipped because they did not parse",
	})

	oracleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "duration_seconds",
		Help:      "Time spent in one structure computation",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 10, 8),
	})

	// oracleFailures counts abandoned structure computations.
	// Labels: reason (timeout, mismatch, other)
	oracleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "failures_total",
		Help:      "Structure computations that failed",
	}, []string{"reason"})

	dispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "assignments_total",
		Help:      "Shard indices handed to workers",
	})

	workersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "workers_active",
		Help:      "Workers that have not yet received the stop sentinel",
	})
)

func ObserveShard(status types.ShardStatus, elapsed time.Duration) {
	shardsTotal.WithLabelValues(string(status)).Inc()
	if status == types.StatusDone {
		shardDuration.Observe(elapsed.Seconds())
	}
}

func IncLine(kron types.Kron) { linesTotal.WithLabelValues(kron.String()).Inc() }

func IncMalformedLine() { malformedLines.Inc() }

func ObserveOracle(elapsed time.Duration) { oracleDuration.Observe(elapsed.Seconds()) }

func IncOracleFailure(reason string) { oracleFailures.WithLabelValues(reason).Inc() }

func IncDispatched() { dispatched.Inc() }

func SetWorkersActive(n int) { workersActive.Set(float64(n)) }

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type IntegrityCollector struct {
	// Normalizer
	requestsTotal   prometheus.Counter // total request events read from the ledger
	retainedTotal   prometheus.Counter // total update events retained after deduplication
	supersededTotal prometheus.Counter // total update events superseded by a later update
	correlatedTotal prometheus.Counter // total readings attached to an update

	// Checks
	signatureChecks *prometheus.CounterVec // signature checks, by result
	leafChecks      *prometheus.CounterVec // rebuilt leaves, by result
	rootComparisons *prometheus.CounterVec // aggregate root comparisons, by result

	// Report
	validIntervals   prometheus.Gauge
	invalidIntervals prometheus.Gauge

	// Pipeline
	stageDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec

	// Content cache
	cacheHits    *prometheus.CounterVec
	cacheMisses  prometheus.Counter
	fetchRetries prometheus.Counter
}

func NewIntegrityCollector(registerer prometheus.Registerer) *IntegrityCollector {
	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "request_events_total",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemNormalizer,
		Help:      "total number of root request events read from the ledger",
	})

	retainedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "retained_updates_total",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemNormalizer,
		Help:      "total number of root update events retained after deduplication",
	})

	supersededTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "superseded_updates_total",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemNormalizer,
		Help:      "total number of root update events superseded by a later update for the same request",
	})

	correlatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "correlated_readings_total",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemNormalizer,
		Help:      "total number of stored readings attached to an update event",
	})

	signatureChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "checks_total",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemSignature,
		Help:      "total number of sensor signature checks",
	}, []string{LabelResult})

	leafChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "checks_total",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemLeaf,
		Help:      "total number of rebuilt leaves compared to the committed leaf",
	}, []string{LabelResult})

	rootComparisons := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "root_comparisons_total",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemLeaf,
		Help:      "total number of aggregate root comparisons against the ledger",
	}, []string{LabelResult})

	validIntervals := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "valid_intervals",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemReport,
		Help:      "number of valid intervals in the last report",
	})

	invalidIntervals := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "invalid_intervals",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemReport,
		Help:      "number of invalid intervals in the last report",
	})

	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "stage_duration_seconds",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemPipeline,
		Help:      "time spent in a verification stage",
		Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
	}, []string{LabelStage})

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "runs_total",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemPipeline,
		Help:      "total number of finished verification runs",
	}, []string{LabelResult})

	cacheHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "cache_hits_total",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemContent,
		Help:      "total number of content references served from a local cache",
	}, []string{LabelTier})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "cache_misses_total",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemContent,
		Help:      "total number of content references fetched from the gateway",
	})

	fetchRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "fetch_retries_total",
		Namespace: namespaceIntegrity,
		Subsystem: subsystemContent,
		Help:      "total number of retried gateway fetches",
	})

	// registers all metrics and panics if any fails.
	registerer.MustRegister(
		// normalizer
		requestsTotal,
		retainedTotal,
		supersededTotal,
		correlatedTotal,

		// checks
		signatureChecks,
		leafChecks,
		rootComparisons,

		// report
		validIntervals,
		invalidIntervals,

		// pipeline
		stageDuration,
		runs,

		// content
		cacheHits,
		cacheMisses,
		fetchRetries,
	)

	return &IntegrityCollector{
		requestsTotal:    requestsTotal,
		retainedTotal:    retainedTotal,
		supersededTotal:  supersededTotal,
		correlatedTotal:  correlatedTotal,
		signatureChecks:  signatureChecks,
		leafChecks:       leafChecks,
		rootComparisons:  rootComparisons,
		validIntervals:   validIntervals,
		invalidIntervals: invalidIntervals,
		stageDuration:    stageDuration,
		runs:             runs,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		fetchRetries:     fetchRetries,
	}
}

// EventsNormalized is called once the normalizer merged the ledger events.
func (ic *IntegrityCollector) EventsNormalized(requests, retained, superseded int) {
	ic.requestsTotal.Add(float64(requests))
	ic.retainedTotal.Add(float64(retained))
	ic.supersededTotal.Add(float64(superseded))
}

func (ic *IntegrityCollector) ReadingsCorrelated(count int) {
	ic.correlatedTotal.Add(float64(count))
}

func (ic *IntegrityCollector) SignatureChecked(ok bool) {
	ic.signatureChecks.WithLabelValues(result(ok)).Inc()
}

func (ic *IntegrityCollector) LeafChecked(ok bool) {
	ic.leafChecks.WithLabelValues(result(ok)).Inc()
}

func (ic *IntegrityCollector) RootCompared(ok bool) {
	ic.rootComparisons.WithLabelValues(result(ok)).Inc()
}

// IntervalsReported sets the interval gauges to the partition of the last report.
func (ic *IntegrityCollector) IntervalsReported(valid, invalid int) {
	ic.validIntervals.Set(float64(valid))
	ic.invalidIntervals.Set(float64(invalid))
}

func (ic *IntegrityCollector) StageDuration(stage string, duration time.Duration) {
	ic.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (ic *IntegrityCollector) RunFinished(passed bool) {
	ic.runs.WithLabelValues(result(passed)).Inc()
}

func (ic *IntegrityCollector) ContentCacheHit(tier string) {
	ic.cacheHits.WithLabelValues(tier).Inc()
}

func (ic *IntegrityCollector) ContentCacheMiss() {
	ic.cacheMisses.Inc()
}

func (ic *IntegrityCollector) ContentFetchRetried() {
	ic.fetchRetries.Inc()
}

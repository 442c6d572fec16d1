package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VectorsGeneratedTotal counts sparse vectors produced, by mode (random, deterministic)
	VectorsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsakit_vectors_generated_total",
			Help: "Total number of sparse vectors generated",
		},
		[]string{"mode"},
	)

	// SamplingDrawsTotal counts index draws made by rejection sampling, including rejected ones
	SamplingDrawsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vsakit_sampling_draws_total",
			Help: "Total number of index draws made while sampling sparse vectors",
		},
	)

	// ChaosEventsTotal counts injected fault events by kind (bitflip, packet, erasure)
	ChaosEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsakit_chaos_events_total",
			Help: "Total number of fault events injected",
		},
		[]string{"kind"},
	)

	// ChaosBytesTouchedTotal tracks bytes zeroed or flipped by the injector
	ChaosBytesTouchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsakit_chaos_bytes_touched_total",
			Help: "Total bytes modified by fault injection",
		},
		[]string{"kind"},
	)

	// IntegrityChecksTotal counts validator checks by result (pass, fail)
	IntegrityChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsakit_integrity_checks_total",
			Help: "Total number of integrity checks performed",
		},
		[]string{"result"},
	)

	// IntegrityAnomaliesTotal counts detected anomalies by class (bitflip, corruption, invariant)
	IntegrityAnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsakit_integrity_anomalies_total",
			Help: "Total number of anomalies detected by the integrity validator",
		},
		[]string{"class"},
	)

	// TransportDecodeErrorsTotal counts payloads that failed to decode after corruption
	TransportDecodeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vsakit_transport_decode_errors_total",
			Help: "Total number of Arrow IPC payloads that failed to decode",
		},
	)

	// TransportDecodeBytesTotal tracks bytes allocated while decoding payloads
	TransportDecodeBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vsakit_transport_decode_bytes_total",
			Help: "Total bytes allocated by the Arrow IPC decoder",
		},
	)

	// PoolOperationsTotal counts pool traffic by pool (bitmap, bytes) and op (get, put, discard)
	PoolOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsakit_pool_operations_total",
			Help: "Total number of object pool operations",
		},
		[]string{"pool", "op"},
	)

	// CampaignSeedDurationSeconds measures the time spent on one campaign seed
	CampaignSeedDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vsakit_campaign_seed_duration_seconds",
			Help:    "Duration of a single campaign seed run",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CampaignSeedsTotal counts completed campaign seeds by outcome (healthy, unhealthy)
	CampaignSeedsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsakit_campaign_seeds_total",
			Help: "Total number of campaign seeds completed",
		},
		[]string{"outcome"},
	)
)

// Package metrics exposes the Prometheus collectors of the prover and the
// verifier. Collectors are registered on a caller-supplied registerer so
// tests and embedders can keep them off the global registry.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zephyr"

// Metrics groups the pipeline collectors
type Metrics struct {
	ChunksProved   prometheus.Counter
	ChunkFailures  *prometheus.CounterVec
	ChunkDuration  prometheus.Histogram
	ProofDuration  prometheus.Histogram
	StepsProved    prometheus.Counter
	InFlight       prometheus.Gauge
	Verifications  *prometheus.CounterVec
	VerifyDuration prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered. Collectors that are already registered on reg are
// reused, so several provers may share one registry.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ChunksProved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prover",
			Name:      "chunks_proved_total",
			Help:      "Number of chunk circuits proved.",
		}),
		ChunkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prover",
			Name:      "chunk_failures_total",
			Help:      "Number of chunk proofs that failed, by error kind.",
		}, []string{"kind"}),
		ChunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prover",
			Name:      "chunk_duration_seconds",
			Help:      "Time to assemble and prove one chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		ProofDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prover",
			Name:      "proof_duration_seconds",
			Help:      "Time to prove a whole trace.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
		}),
		StepsProved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prover",
			Name:      "steps_proved_total",
			Help:      "Number of trace steps covered by successful proofs.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "prover",
			Name:      "chunks_in_flight",
			Help:      "Chunks currently being proved.",
		}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verifier",
			Name:      "verifications_total",
			Help:      "Artifact verifications, by result.",
		}, []string{"result"}),
		VerifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "verifier",
			Name:      "duration_seconds",
			Help:      "Time to verify an artifact.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.ChunksProved, err = register(reg, m.ChunksProved); err != nil {
		return nil, err
	}
	if m.ChunkFailures, err = register(reg, m.ChunkFailures); err != nil {
		return nil, err
	}
	if m.ChunkDuration, err = register(reg, m.ChunkDuration); err != nil {
		return nil, err
	}
	if m.ProofDuration, err = register(reg, m.ProofDuration); err != nil {
		return nil, err
	}
	if m.StepsProved, err = register(reg, m.StepsProved); err != nil {
		return nil, err
	}
	if m.InFlight, err = register(reg, m.InFlight); err != nil {
		return nil, err
	}
	if m.Verifications, err = register(reg, m.Verifications); err != nil {
		return nil, err
	}
	if m.VerifyDuration, err = register(reg, m.VerifyDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, returning the collector already registered under
// the same descriptor when there is one
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Discard returns unregistered collectors
func Discard() *Metrics {
	m, _ := New(nil)
	return m
}

// ObserveChunk records one finished chunk
func (m *Metrics) ObserveChunk(start time.Time, steps int, err error, kind string) {
	m.ChunkDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.ChunkFailures.WithLabelValues(kind).Inc()
		return
	}
	m.ChunksProved.Inc()
	m.StepsProved.Add(float64(steps))
}

// ObserveVerification records one artifact verification
func (m *Metrics) ObserveVerification(start time.Time, ok bool) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
	result := "rejected"
	if ok {
		result = "accepted"
	}
	m.Verifications.WithLabelValues(result).Inc()
}

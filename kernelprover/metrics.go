package kernelprover

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	circuitInit  = "init"
	circuitInner = "inner"
	circuitReset = "reset"
	circuitTail  = "tail"
)

var (
	circuitSimulations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kernel_prover_circuit_simulations_total",
			Help: "Total number of kernel circuit simulations by circuit",
		},
		[]string{"circuit"},
	)

	circuitSimulationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kernel_prover_circuit_simulation_errors_total",
			Help: "Total number of failed kernel circuit simulations by circuit",
		},
		[]string{"circuit"},
	)

	proveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kernel_prover_prove_duration_seconds",
			Help:    "Duration of a whole transaction proof in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		},
	)

	proofChainLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kernel_prover_chain_length",
			Help:    "Number of circuits composed per transaction",
			Buckets: prometheus.LinearBuckets(3, 4, 10),
		},
	)

	provesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kernel_prover_proves_total",
			Help: "Total number of transaction proofs by result",
		},
		[]string{"status"},
	)
)

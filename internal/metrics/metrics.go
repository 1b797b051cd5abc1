package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Update loop
	StepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "learner",
		Subsystem: "loop",
		Name:      "steps_total",
		Help:      "Total completed learning steps",
	})

	StepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learner",
		Subsystem: "loop",
		Name:      "step_errors_total",
		Help:      "Total learning steps aborted by an error, by state",
	}, []string{"state"})

	StepLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "learner",
		Subsystem: "loop",
		Name:      "step_duration_seconds",
		Help:      "Learning step duration from batch receipt through reply, target sync and publish (excludes the wait for a batch)",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	StepCounter = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "learner",
		Subsystem: "loop",
		Name:      "step",
		Help:      "Current value of the step counter",
	})

	TargetSyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "learner",
		Subsystem: "loop",
		Name:      "target_syncs_total",
		Help:      "Total target network refreshes",
	})

	// Transport
	BatchesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "learner",
		Subsystem: "transport",
		Name:      "batches_received_total",
		Help:      "Total replay batches received on the reply endpoint",
	})

	BatchBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "learner",
		Subsystem: "transport",
		Name:      "batch_bytes",
		Help:      "Encoded replay batch size",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
	})

	ParamPublishes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "learner",
		Subsystem: "transport",
		Name:      "param_publishes_total",
		Help:      "Total parameter snapshots handed to the publisher",
	})

	PublishDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "learner",
		Subsystem: "transport",
		Name:      "publish_dropped_total",
		Help:      "Total snapshots replaced by a newer one before they were sent",
	})

	PublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "learner",
		Subsystem: "transport",
		Name:      "publish_errors_total",
		Help:      "Total failed snapshot sends",
	})

	SnapshotBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "learner",
		Subsystem: "transport",
		Name:      "snapshot_bytes",
		Help:      "Size of the last encoded parameter snapshot",
	})

	// Intake queue
	IntakeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "learner",
		Subsystem: "intake",
		Name:      "queue_depth",
		Help:      "Replay batches waiting in the intake queue",
	})

	IntakeEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "learner",
		Subsystem: "intake",
		Name:      "evictions_total",
		Help:      "Total replay batches evicted on queue overflow",
	})

	// Agents
	AgentScalar = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "learner",
		Subsystem: "agent",
		Name:      "scalar",
		Help:      "Last scalar reported by an agent (losses etc.), by agent and name",
	}, []string{"agent", "name"})

	AgentScalarStep = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "learner",
		Subsystem: "agent",
		Name:      "scalar_step",
		Help:      "Step at which the scalar was last written",
	}, []string{"agent", "name"})
)

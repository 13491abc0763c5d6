package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/agent"
)

// Telemetry exports process-level counters alongside the domain metrics
// aggregator.
type Telemetry struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	queueDepth prometheus.Gauge
}

// NewTelemetry registers the orchestrator collectors.
func NewTelemetry(reg prometheus.Registerer) *Telemetry {
	factory := promauto.With(reg)
	return &Telemetry{
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerpilot_agent_executions_total",
			Help: "Terminal agent execution outcomes by agent type.",
		}, []string{"agent_type", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgerpilot_agent_processing_seconds",
			Help:    "Handler processing time by agent type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent_type"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ledgerpilot_queue_depth",
			Help: "Items outstanding in the execution queue.",
		}),
	}
}

func (t *Telemetry) observe(agentType agent.Type, outcome string, d time.Duration) {
	if t == nil {
		return
	}
	t.executions.WithLabelValues(string(agentType), outcome).Inc()
	t.duration.WithLabelValues(string(agentType)).Observe(d.Seconds())
}

func (t *Telemetry) setQueueDepth(n int) {
	if t == nil {
		return
	}
	t.queueDepth.Set(float64(n))
}

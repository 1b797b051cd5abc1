package metrics

import (
	"log/slog"
	"strconv"
)

// ScalarRecorder writes per-agent scalars to Prometheus gauges and the debug log.
type ScalarRecorder struct {
	logger *slog.Logger
}

func NewScalarRecorder(logger *slog.Logger) *ScalarRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScalarRecorder{logger: logger.With("component", "scalars")}
}

func (r *ScalarRecorder) WriteScalar(agent int, name string, value float64, step int64) {
	label := strconv.Itoa(agent)
	AgentScalar.WithLabelValues(label, name).Set(value)
	AgentScalarStep.WithLabelValues(label, name).Set(float64(step))
	r.logger.Debug("scalar", "agent", agent, "name", name, "value", value, "step", step)
}

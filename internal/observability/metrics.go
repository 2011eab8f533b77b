package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bridge's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so components can take one optionally.
type Metrics struct {
	// UpdatesTotal counts inbound updates.
	// Labels: result (accepted|duplicate|ignored|rejected)
	UpdatesTotal *prometheus.CounterVec

	// TurnsTotal counts finished turns.
	// Labels: kind (message|command), status (success|error)
	TurnsTotal *prometheus.CounterVec

	// TurnDuration measures a turn from resolve to final flush.
	TurnDuration prometheus.Histogram

	// ActiveTurns is the number of turns in flight.
	ActiveTurns prometheus.Gauge

	// ExchangeRounds counts requests sent to the agent per turn, including
	// approval resubmissions.
	ExchangeRounds prometheus.Histogram

	// ToolCallsTotal counts client-side tool executions.
	// Labels: tool, status (success|error)
	ToolCallsTotal *prometheus.CounterVec

	// ToolDuration measures tool handler latency.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// RendererOpsTotal counts chat platform writes made by the renderer.
	// Labels: op (send|edit), status (success|error|throttled|skipped)
	RendererOpsTotal *prometheus.CounterVec

	// ProvisioningTotal counts agent lifecycle calls.
	// Labels: op (create|delete), status (success|error)
	ProvisioningTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. Passing nil
// registers with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		UpdatesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentbridge_updates_total",
			Help: "Inbound chat updates by result",
		}, []string{"result"}),
		TurnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentbridge_turns_total",
			Help: "Finished turns by kind and status",
		}, []string{"kind", "status"}),
		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentbridge_turn_duration_seconds",
			Help:    "Duration of a turn in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),
		ActiveTurns: f.NewGauge(prometheus.GaugeOpts{
			Name: "agentbridge_active_turns",
			Help: "Turns currently in flight",
		}),
		ExchangeRounds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentbridge_exchange_rounds",
			Help:    "Agent requests per turn, including approval resubmissions",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		ToolCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentbridge_tool_calls_total",
			Help: "Client-side tool executions by tool and status",
		}, []string{"tool", "status"}),
		ToolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentbridge_tool_duration_seconds",
			Help:    "Client-side tool execution time in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"tool"}),
		RendererOpsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentbridge_renderer_ops_total",
			Help: "Chat platform writes by the outbound renderer",
		}, []string{"op", "status"}),
		ProvisioningTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentbridge_provisioning_total",
			Help: "Agent provisioning calls by operation and status",
		}, []string{"op", "status"}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Update records an inbound update.
func (m *Metrics) Update(result string) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(result).Inc()
}

// TurnStarted increments the active turn gauge and returns a function that
// records the outcome.
func (m *Metrics) TurnStarted(kind string) func(err error) {
	if m == nil {
		return func(error) {}
	}
	start := time.Now()
	m.ActiveTurns.Inc()
	return func(err error) {
		m.ActiveTurns.Dec()
		m.TurnsTotal.WithLabelValues(kind, status(err)).Inc()
		m.TurnDuration.Observe(time.Since(start).Seconds())
	}
}

// Rounds records how many agent requests a turn needed.
func (m *Metrics) Rounds(n int) {
	if m == nil {
		return
	}
	m.ExchangeRounds.Observe(float64(n))
}

// ToolCall records one tool execution.
func (m *Metrics) ToolCall(tool string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	st := "success"
	if failed {
		st = "error"
	}
	m.ToolCallsTotal.WithLabelValues(tool, st).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// RendererOp records a send or edit attempt.
func (m *Metrics) RendererOp(op, result string) {
	if m == nil {
		return
	}
	m.RendererOpsTotal.WithLabelValues(op, result).Inc()
}

// Provisioning records an agent create or delete call.
func (m *Metrics) Provisioning(op string, err error) {
	if m == nil {
		return
	}
	m.ProvisioningTotal.WithLabelValues(op, status(err)).Inc()
}

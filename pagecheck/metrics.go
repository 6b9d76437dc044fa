package pagecheck

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Metrics are the Prometheus collectors updated by a Runner. A nil
// *Metrics records nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	scenarios    *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	stepFailures *prometheus.CounterVec
}

// NewMetrics registers the pagecheck collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagecheck",
			Name:      "runs_total",
			Help:      "Verification runs, by outcome (ok, failed, aborted).",
		}, []string{"outcome"}),
		scenarios: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagecheck",
			Name:      "scenarios_total",
			Help:      "Scenario executions, by scenario and status.",
		}, []string{"scenario", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pagecheck",
			Name:      "scenario_duration_seconds",
			Help:      "Wall time of executed scenarios.",
			Buckets:   []float64{.25, .5, 1, 2, 5, 10, 20, 40},
		}, []string{"scenario"}),
		stepFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagecheck",
			Name:      "step_failures_total",
			Help:      "Failed steps, by action.",
		}, []string{"action"}),
	}
}

func (m *Metrics) observeResult(res *scenario.Result) {
	if m == nil {
		return
	}
	m.scenarios.WithLabelValues(res.Scenario, string(res.Status)).Inc()
	if res.Status == scenario.StatusSkipped {
		return
	}
	m.duration.WithLabelValues(res.Scenario).Observe(res.Duration.Seconds())
	if res.FailedStep >= 0 && res.FailedStep < len(res.Steps) {
		m.stepFailures.WithLabelValues(string(res.Steps[res.FailedStep].Action)).Inc()
	}
}

func (m *Metrics) observeReport(rep *scenario.Report) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case rep.Aborted != "":
		outcome = "aborted"
	case !rep.OK():
		outcome = "failed"
	}
	m.runs.WithLabelValues(outcome).Inc()
}

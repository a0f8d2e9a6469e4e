package pipeline

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline counters. A nil *Metrics is a no-op.
type Metrics struct {
	runs          *prom.CounterVec
	tasksCreated  prom.Counter
	dropped       prom.Counter
	stageFailures *prom.CounterVec
	stageDuration *prom.HistogramVec
}

func NewMetrics(reg prom.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "minutemate",
			Name:      "pipeline_runs_total",
			Help:      "Processed submissions by final state.",
		}, []string{"outcome"}),
		tasksCreated: prom.NewCounter(prom.CounterOpts{
			Namespace: "minutemate",
			Name:      "tickets_created_total",
			Help:      "Tickets created in the issue tracker.",
		}),
		dropped: prom.NewCounter(prom.CounterOpts{
			Namespace: "minutemate",
			Name:      "proposals_dropped_total",
			Help:      "Extracted proposals excluded during normalization.",
		}),
		stageFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "minutemate",
			Name:      "stage_failures_total",
			Help:      "Failures recorded per pipeline stage.",
		}, []string{"stage", "code"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "minutemate",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline state.",
			Buckets:   prom.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage"}),
	}
	for _, c := range []prom.Collector{m.runs, m.tasksCreated, m.dropped, m.stageFailures, m.stageDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering pipeline metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) observeResult(res *Result) {
	if m == nil || res == nil {
		return
	}
	m.runs.WithLabelValues(res.State).Inc()
	m.dropped.Add(float64(res.Dropped))
	for _, o := range res.Tasks {
		if o.Ticket != nil && !o.Ticket.Reused {
			m.tasksCreated.Inc()
		}
	}
	for _, f := range res.Failures {
		m.stageFailures.WithLabelValues(string(f.Stage), f.Code).Inc()
	}
}

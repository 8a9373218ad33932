package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics tracks scheduled job runs and lock contention.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	skipped  prometheus.Counter
}

// NewCronJobMetrics registers the cron metrics on reg. A nil registerer
// yields a no-op collector.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "khatabook_cron_job_duration_seconds",
			Help:    "Wall time of each cron job run.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "khatabook_cron_job_runs_total",
			Help: "Cron job runs by outcome.",
		}, []string{"job", "outcome"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "khatabook_cron_cycles_skipped_total",
			Help: "Cycles skipped because another worker held the cron lock.",
		}),
	}
	reg.MustRegister(m.duration, m.runs, m.skipped)
	return m
}

// ObserveRun records one finished job run.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(took.Seconds())
	c.runs.WithLabelValues(normalizeLabel(job), outcome).Inc()
}

// IncSkipped counts a cycle lost to lock contention.
func (c *CronJobMetrics) IncSkipped() {
	if c == nil || c.skipped == nil {
		return
	}
	c.skipped.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

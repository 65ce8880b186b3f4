package trident

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Trial outcomes, as exported in the trident_campaign_trials_total counter.
const (
	OutcomeSuccess = "success" // every threshold met
	OutcomeFailure = "failure" // at least one threshold missed
	OutcomeError   = "error"   // the trial could not be completed
)

// CampaignMetrics exports the progress of Monte Carlo campaigns.
type CampaignMetrics struct {
	trials   *prometheus.CounterVec
	duration prometheus.Histogram
	window   prometheus.Histogram
}

// NewCampaignMetrics returns campaign metrics registered on reg.
func NewCampaignMetrics(reg prometheus.Registerer) (*CampaignMetrics, error) {
	m := &CampaignMetrics{
		trials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trident_campaign_trials_total",
				Help: "Total number of Monte Carlo trials by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trident_campaign_trial_duration_seconds",
				Help:    "Wall time of a Monte Carlo trial in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),
		window: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trident_campaign_window_seconds",
				Help:    "Access window duration of the completed trials in seconds.",
				Buckets: prometheus.LinearBuckets(0, 15, 16),
			},
		),
	}
	for _, c := range []prometheus.Collector{m.trials, m.duration, m.window} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records a finished trial. A nil receiver records nothing.
func (m *CampaignMetrics) Observe(t MonteCarloTrial) {
	if m == nil {
		return
	}
	m.trials.WithLabelValues(t.Outcome()).Inc()
	m.duration.Observe(t.Elapsed.Seconds())
	if t.FailureReason == FailureNone {
		m.window.Observe(t.WindowDuration.Seconds())
	}
}

// Package runstats records the outcome of a collection cycle as Prometheus
// metrics and pushes them to a Pushgateway.
package runstats

import (
	"context"
	"time"

	"github.com/DataDog/pulsar-metrics/internal/collector"
	"github.com/DataDog/pulsar-metrics/topicmetrics/azure"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "pulsarmetrics"

// Stats holds the cycle metrics on a private registry.
type Stats struct {
	registry *prometheus.Registry

	topicsRequested prometheus.Gauge
	topicsFetched   prometheus.Gauge
	kindOutcome     *prometheus.GaugeVec
	monitorPosts    prometheus.Gauge
	tokenRefreshes  prometheus.Gauge
	duration        prometheus.Gauge
	lastSuccess     prometheus.Gauge
	succeeded       bool
}

// New returns a *Stats with all metrics registered.
func New() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		topicsRequested: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topics_requested",
			Help:      "Distinct topics requested from the admin API in the last run.",
		}),
		topicsFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topics_fetched",
			Help:      "Topics with stats in the last run.",
		}),
		kindOutcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kind_outcome",
			Help:      "1 for the outcome of each metric kind in the last run.",
		}, []string{"kind", "outcome"}),
		monitorPosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitoring_posts",
			Help:      "POSTs made to the monitoring endpoint in the last run.",
		}),
		tokenRefreshes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "token_refreshes",
			Help:      "Access tokens issued in the last run.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that submitted at least one kind.",
		}),
	}

	s.registry.MustRegister(
		s.topicsRequested,
		s.topicsFetched,
		s.kindOutcome,
		s.monitorPosts,
		s.tokenRefreshes,
		s.duration,
	)

	return s
}

// Registry returns the registry holding the metrics.
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// Observe records a finished run.
func (s *Stats) Observe(r *collector.Report, a azure.Stats, d time.Duration, now time.Time) {
	s.topicsRequested.Set(float64(r.Topics))
	s.topicsFetched.Set(float64(r.Fetched))
	s.monitorPosts.Set(float64(a.Posts))
	s.tokenRefreshes.Set(float64(a.Refreshes))
	s.duration.Set(d.Seconds())

	for _, k := range r.Kinds {
		for _, o := range []collector.Outcome{collector.Submitted, collector.MissingTopic, collector.Failed} {
			v := 0.0
			if k.Outcome == o {
				v = 1
			}
			s.kindOutcome.WithLabelValues(k.Kind, o.String()).Set(v)
		}
	}

	// Only registered on success so the Pushgateway keeps the previous
	// value otherwise.
	if r.OK() {
		s.lastSuccess.Set(float64(now.Unix()))
		if !s.succeeded {
			s.registry.MustRegister(s.lastSuccess)
			s.succeeded = true
		}
	}
}

// Push adds the metrics for job to the Pushgateway at url. Metrics with the
// same names are replaced; others pushed earlier are kept.
func (s *Stats) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(s.registry).AddContext(ctx)
}

// Package datadog implements a topicmetrics Handler that mirrors envelopes
// to Datadog as gauges.
package datadog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/DataDog/pulsar-metrics/topicmetrics"

	dd "github.com/zorkian/go-datadog-api"
)

// DefaultMetricPrefix is prepended to all metric names.
const DefaultMetricPrefix = "pulsar.topic"

// Config holds Handler configuration parameters.
type Config struct {
	// Datadog API key.
	APIKey string
	// Datadog app key.
	AppKey string
	// MetricPrefix defaults to DefaultMetricPrefix.
	MetricPrefix string
	// Tags are added to every series.
	Tags []string
}

// poster is the subset of *dd.Client used by the handler.
type poster interface {
	PostMetrics([]dd.Metric) error
}

type ddHandler struct {
	c      poster
	prefix string
	tags   []string
}

// NewHandler takes a *Config and returns a topicmetrics.Handler.
func NewHandler(c *Config) (topicmetrics.Handler, error) {
	if c.APIKey == "" {
		return nil, errors.New("Datadog API key must be set")
	}

	return newHandler(dd.NewClient(c.APIKey, c.AppKey), c), nil
}

func newHandler(p poster, c *Config) *ddHandler {
	prefix := c.MetricPrefix
	if prefix == "" {
		prefix = DefaultMetricPrefix
	}

	return &ddHandler{
		c:      p,
		prefix: strings.TrimSuffix(prefix, "."),
		tags:   c.Tags,
	}
}

// PostMetric posts each series in the envelope as a gauge tagged with its
// topic.
func (h *ddHandler) PostMetric(_ context.Context, e *topicmetrics.Envelope) error {
	metrics, err := h.metricsFromEnvelope(e)
	if err != nil {
		return err
	}

	if len(metrics) == 0 {
		return nil
	}

	if err := h.c.PostMetrics(metrics); err != nil {
		return &topicmetrics.APIError{
			Request: "post metrics",
			Message: err.Error(),
		}
	}

	return nil
}

// metricsFromEnvelope converts an envelope's series into []dd.Metric.
func (h *ddHandler) metricsFromEnvelope(e *topicmetrics.Envelope) ([]dd.Metric, error) {
	ts, err := time.ParseInLocation(topicmetrics.TimeFormat, e.Time, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid envelope time %q: %w", e.Time, err)
	}

	name := metricName(h.prefix, e.Metric())
	stamp := float64(ts.Unix())

	var metrics []dd.Metric
	for _, s := range e.Series() {
		tags := append([]string{"topic:" + s.Topic()}, h.tags...)
		v := s.Sum

		metrics = append(metrics, dd.Metric{
			Metric: dd.String(name),
			Type:   dd.String("gauge"),
			Points: []dd.DataPoint{{dd.Float64(stamp), dd.Float64(v)}},
			Tags:   tags,
		})
	}

	return metrics, nil
}

// metricName joins the prefix with the snake-cased metric name, e.g.
// "Msg Rate In" becomes "pulsar.topic.msg_rate_in".
func metricName(prefix, metric string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(metric) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune('_')
		}
	}

	return prefix + "." + b.String()
}

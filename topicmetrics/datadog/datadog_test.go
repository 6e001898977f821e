package datadog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DataDog/pulsar-metrics/topicmetrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dd "github.com/zorkian/go-datadog-api"
)

type mockPoster struct {
	posted []dd.Metric
	err    error
}

func (m *mockPoster) PostMetrics(ms []dd.Metric) error {
	m.posted = append(m.posted, ms...)
	return m.err
}

func stubEnvelope() *topicmetrics.Envelope {
	series := []topicmetrics.Series{
		{DimValues: []string{"hfp/v2"}, Sum: 12.3, Count: 1},
		{DimValues: []string{"gtfs-rt/feedmessage-tripupdate"}, Sum: 0, Count: 1},
	}
	return topicmetrics.NewEnvelope(time.Unix(1700000000, 0), topicmetrics.MetricMsgRateIn, series)
}

func TestNewHandler(t *testing.T) {
	_, err := NewHandler(&Config{})
	assert.Error(t, err)

	h, err := NewHandler(&Config{APIKey: "key"})
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestMetricName(t *testing.T) {
	assert.Equal(t, "pulsar.topic.msg_rate_in", metricName("pulsar.topic", "Msg Rate In"))
	assert.Equal(t, "p.storage_size", metricName("p", " Storage Size "))
}

func TestPostMetric(t *testing.T) {
	m := &mockPoster{}
	h := newHandler(m, &Config{Tags: []string{"env:test"}})

	require.NoError(t, h.PostMetric(context.Background(), stubEnvelope()))
	require.Len(t, m.posted, 2)

	first := m.posted[0]
	assert.Equal(t, "pulsar.topic.msg_rate_in", first.GetMetric())
	assert.Equal(t, "gauge", first.GetType())
	assert.Equal(t, []string{"topic:hfp/v2", "env:test"}, first.Tags)
	assert.Equal(t, 1700000000.0, *first.Points[0][0])
	assert.Equal(t, 12.3, *first.Points[0][1])

	assert.Equal(t, []string{"topic:gtfs-rt/feedmessage-tripupdate", "env:test"}, m.posted[1].Tags)
}

func TestPostMetricError(t *testing.T) {
	m := &mockPoster{err: errors.New("403 Forbidden")}
	h := newHandler(m, &Config{})

	err := h.PostMetric(context.Background(), stubEnvelope())
	var apiErr *topicmetrics.APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestPostMetricInvalidTime(t *testing.T) {
	m := &mockPoster{}
	h := newHandler(m, &Config{})

	e := stubEnvelope()
	e.Time = "yesterday"
	assert.Error(t, h.PostMetric(context.Background(), e))
	assert.Empty(t, m.posted)
}

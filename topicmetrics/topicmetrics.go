// Package topicmetrics builds per-topic custom metric payloads from Pulsar
// topic stats and posts them to supported metrics backends.
package topicmetrics

import (
	"context"
)

// Namespace is the custom metric namespace all series are reported under.
const Namespace = "Pulsar"

// DimensionName is the single dimension each series is keyed by.
const DimensionName = "Topic"

// Handler posts metric envelopes to a metrics backend.
type Handler interface {
	PostMetric(context.Context, *Envelope) error
}

// Kind describes a tracked metric: the name it's reported as, the topic stats
// field it's read from and the ordered list of topics it's reported for.
type Kind struct {
	Name   string   `yaml:"name"`
	Field  string   `yaml:"field"`
	Topics []string `yaml:"topics"`
}

// Series is a single data point for one topic.
type Series struct {
	DimValues []string `json:"dimValues"`
	Sum       float64  `json:"sum"`
	Count     int      `json:"count"`
}

// Topic returns the topic dimension value of the series.
func (s Series) Topic() string {
	if len(s.DimValues) == 0 {
		return ""
	}
	return s.DimValues[0]
}

// Envelope is the custom metric submission payload for one metric kind.
type Envelope struct {
	Time string `json:"time"`
	Data Data   `json:"data"`
}

// Data wraps BaseData.
type Data struct {
	BaseData BaseData `json:"baseData"`
}

// BaseData holds the metric name, namespace, dimension names and series.
type BaseData struct {
	Metric    string   `json:"metric"`
	Namespace string   `json:"namespace"`
	DimNames  []string `json:"dimNames"`
	Series    []Series `json:"series"`
}

// Metric returns the envelope's metric name.
func (e *Envelope) Metric() string {
	return e.Data.BaseData.Metric
}

// Series returns the envelope's series.
func (e *Envelope) Series() []Series {
	return e.Data.BaseData.Series
}

package topicmetrics

import (
	"math"
	"time"

	"github.com/DataDog/pulsar-metrics/pulsaradmin"
)

// TimeFormat is the envelope timestamp layout (UTC, second precision).
const TimeFormat = "2006-01-02T15:04:05"

// Round rounds v to one decimal place, half away from zero.
func Round(v float64) float64 {
	return math.Round(v*10) / 10
}

// BuildSeries returns a Series for each topic in topics, in order, using the
// stats field named by field. A topic without an entry in the collection
// fails the whole series with a *MissingTopicError, and one whose stats lack
// the field fails it with a *MissingFieldError; no value is substituted.
func BuildSeries(tc pulsaradmin.TopicCollection, field string, topics []string) ([]Series, error) {
	series := make([]Series, 0, len(topics))

	for _, t := range topics {
		stats, exists := tc[t]
		if !exists || stats == nil {
			return nil, &MissingTopicError{Topic: t, Field: field}
		}

		v, ok := stats.Field(field)
		if !ok {
			return nil, &UnknownFieldError{Field: field}
		}

		if stats.Absent(field) {
			return nil, &MissingFieldError{Topic: t, Field: field}
		}

		series = append(series, Series{
			DimValues: []string{t},
			Sum:       Round(v),
			Count:     1,
		})
	}

	return series, nil
}

// NewEnvelope wraps series for the named metric in an *Envelope stamped
// with now.
func NewEnvelope(now time.Time, metric string, series []Series) *Envelope {
	return &Envelope{
		Time: now.UTC().Format(TimeFormat),
		Data: Data{
			BaseData: BaseData{
				Metric:    metric,
				Namespace: Namespace,
				DimNames:  []string{DimensionName},
				Series:    series,
			},
		},
	}
}

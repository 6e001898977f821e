package topicmetrics

import (
	"context"
)

// Mock mocks the Handler interface. Posted envelopes are recorded; Err, if
// set, is returned from every PostMetric call.
type Mock struct {
	Posted []*Envelope
	Err    error
}

// PostMetric mocks the PostMetric function.
func (m *Mock) PostMetric(_ context.Context, e *Envelope) error {
	m.Posted = append(m.Posted, e)
	return m.Err
}

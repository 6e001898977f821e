package pulsaradmin

import (
	"bytes"
	"context"
	"encoding/json"
)

// trackedFields are the stats every topic is expected to report.
var trackedFields = []string{"msgRateIn", "msgRateOut", "storageSize"}

// TopicStats holds the subset of persistent topic stats we track. All other
// fields returned by the broker are ignored.
type TopicStats struct {
	MsgRateIn        float64 `json:"msgRateIn"`
	MsgRateOut       float64 `json:"msgRateOut"`
	StorageSize      float64 `json:"storageSize"`
	MsgThroughputIn  float64 `json:"msgThroughputIn"`
	MsgThroughputOut float64 `json:"msgThroughputOut"`
	BacklogSize      float64 `json:"backlogSize"`
	AverageMsgSize   float64 `json:"averageMsgSize"`
	MsgInCounter     float64 `json:"msgInCounter"`
	MsgOutCounter    float64 `json:"msgOutCounter"`

	// absent holds tracked fields the broker omitted or sent as null.
	absent map[string]struct{}
}

// UnmarshalJSON decodes a stats body, recording which tracked fields were
// absent so they aren't mistaken for zero.
func (s *TopicStats) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	type plain TopicStats
	if err := json.Unmarshal(b, (*plain)(s)); err != nil {
		return err
	}

	s.absent = nil
	for _, name := range trackedFields {
		v, ok := raw[name]
		if ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		if s.absent == nil {
			s.absent = map[string]struct{}{}
		}
		s.absent[name] = struct{}{}
	}

	return nil
}

// Absent reports whether the named field was missing from the decoded
// stats body.
func (s *TopicStats) Absent(name string) bool {
	_, missing := s.absent[name]
	return missing
}

// Field returns the value of the stat named by its JSON field name.
func (s *TopicStats) Field(name string) (float64, bool) {
	switch name {
	case "msgRateIn":
		return s.MsgRateIn, true
	case "msgRateOut":
		return s.MsgRateOut, true
	case "storageSize":
		return s.StorageSize, true
	case "msgThroughputIn":
		return s.MsgThroughputIn, true
	case "msgThroughputOut":
		return s.MsgThroughputOut, true
	case "backlogSize":
		return s.BacklogSize, true
	case "averageMsgSize":
		return s.AverageMsgSize, true
	case "msgInCounter":
		return s.MsgInCounter, true
	case "msgOutCounter":
		return s.MsgOutCounter, true
	default:
		return 0, false
	}
}

// TopicCollection is a map of topic names to the stats fetched for them in
// the current run. Topics that failed to fetch have no entry.
type TopicCollection map[string]*TopicStats

// Topics returns the topic names in the collection.
func (tc TopicCollection) Topics() []string {
	var names []string
	for name := range tc {
		names = append(names, name)
	}

	return names
}

// TopicStats fetches the stats for a single topic.
func (c *Client) TopicStats(ctx context.Context, topic string) (*TopicStats, error) {
	u := c.StatsURL(topic)

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, &APIError{Request: u, Message: "empty stats body"}
	}

	stats := &TopicStats{}
	if err := json.Unmarshal(body, stats); err != nil {
		return nil, &APIError{Request: u, Message: "error unmarshalling stats: " + err.Error()}
	}

	return stats, nil
}

// CollectTopics fetches stats for each topic sequentially. Topics that fail
// are left out of the returned TopicCollection and an ErrFetchTopic is
// appended to the []error for each. Duplicate names are fetched once.
func (c *Client) CollectTopics(ctx context.Context, topics []string) (TopicCollection, []error) {
	var errs []error
	tc := TopicCollection{}
	seen := map[string]struct{}{}

	for _, t := range topics {
		if _, dupe := seen[t]; dupe {
			continue
		}
		seen[t] = struct{}{}

		stats, err := c.TopicStats(ctx, t)
		if err != nil {
			errs = append(errs, ErrFetchTopic{Topic: t, Err: err})
			continue
		}

		tc[t] = stats
	}

	return tc, errs
}

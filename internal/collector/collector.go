// Package collector runs one collect-and-send cycle: fetch topic stats, build
// an envelope per metric kind and post each to the configured handlers.
package collector

import (
	"context"
	"errors"
	"time"

	"github.com/DataDog/pulsar-metrics/pulsaradmin"
	"github.com/DataDog/pulsar-metrics/topicmetrics"
)

// StatsFetcher fetches stats for a list of topics. *pulsaradmin.Client
// satisfies it.
type StatsFetcher interface {
	CollectTopics(context.Context, []string) (pulsaradmin.TopicCollection, []error)
}

// Config holds Collector configuration parameters.
type Config struct {
	Kinds   []topicmetrics.Kind
	Fetcher StatsFetcher
	// Handler is the primary sink; its outcome decides a kind's Outcome.
	Handler topicmetrics.Handler
	// Mirrors receive every envelope the primary sink is sent. Their errors
	// are reported but don't change the Outcome.
	Mirrors []topicmetrics.Handler
	// Now defaults to time.Now.
	Now func() time.Time
}

// Collector runs collection cycles.
type Collector struct {
	kinds   []topicmetrics.Kind
	fetcher StatsFetcher
	handler topicmetrics.Handler
	mirrors []topicmetrics.Handler
	now     func() time.Time
}

// New returns a *Collector.
func New(c Config) (*Collector, error) {
	switch {
	case len(c.Kinds) == 0:
		return nil, errors.New("at least one metric kind is required")
	case c.Fetcher == nil:
		return nil, errors.New("stats fetcher must be set")
	case c.Handler == nil:
		return nil, errors.New("metrics handler must be set")
	}

	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Collector{
		kinds:   c.Kinds,
		fetcher: c.Fetcher,
		handler: c.Handler,
		mirrors: c.Mirrors,
		now:     now,
	}, nil
}

// Run performs one cycle. Topics are fetched once each in first-seen order
// across kinds. If no topic could be fetched nothing is submitted. Kinds are
// then submitted sequentially; a kind referencing a topic that failed to
// fetch isn't submitted at all.
func (c *Collector) Run(ctx context.Context) *Report {
	r := &Report{}

	topics := topicmetrics.AllTopics(c.kinds)
	tc, errs := c.fetcher.CollectTopics(ctx, topics)

	r.Topics = len(topics)
	r.Fetched = len(tc)
	r.FetchErrors = errs

	if len(tc) == 0 {
		r.Skipped = true
		return r
	}

	for _, k := range c.kinds {
		r.Kinds = append(r.Kinds, c.submit(ctx, k, tc))
	}

	return r
}

// submit builds and posts the envelope for a single kind.
func (c *Collector) submit(ctx context.Context, k topicmetrics.Kind, tc pulsaradmin.TopicCollection) KindResult {
	res := KindResult{Kind: k.Name}

	series, err := topicmetrics.BuildSeries(tc, k.Field, k.Topics)
	if err != nil {
		var missing *topicmetrics.MissingTopicError
		var absent *topicmetrics.MissingFieldError
		if errors.As(err, &missing) || errors.As(err, &absent) {
			res.Outcome = MissingTopic
		} else {
			res.Outcome = Failed
		}
		res.Err = err
		return res
	}

	res.Series = len(series)
	env := topicmetrics.NewEnvelope(c.now(), k.Name, series)

	if err := c.handler.PostMetric(ctx, env); err != nil {
		res.Outcome = Failed
		res.Err = err
	} else {
		res.Outcome = Submitted
	}

	for _, m := range c.mirrors {
		if err := m.PostMetric(ctx, env); err != nil {
			res.MirrorErrors = append(res.MirrorErrors, err)
		}
	}

	return res
}

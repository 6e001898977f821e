package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/DataDog/pulsar-metrics/cluster"
	"github.com/DataDog/pulsar-metrics/tokenstore"
	"github.com/DataDog/pulsar-metrics/topicmetrics"
)

// Handler submits envelopes to Azure Monitor using a cached bearer token.
type Handler struct {
	c           *http.Client
	url         string
	maxAttempts int
	store       tokenstore.Store
	issuer      Issuer
	lock        cluster.Lock

	posts     atomic.Int64
	refreshes atomic.Int64
}

// Stats counts requests made by a Handler.
type Stats struct {
	// Posts is the number of POSTs made to the monitoring endpoint.
	Posts int64
	// Refreshes is the number of tokens issued and stored.
	Refreshes int64
}

// errorResponse is the body of a rejected submission.
type errorResponse struct {
	Error struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Error"`
}

// NewHandler returns a *Handler. A nil issuer defaults to a
// ClientCredentialsIssuer built from the Config and a nil lock to
// cluster.Nop.
func NewHandler(c Config, store tokenstore.Store, issuer Issuer, lock cluster.Lock) (*Handler, error) {
	c = c.withDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	if store == nil {
		return nil, errors.New("token store must be set")
	}

	if issuer == nil {
		i, err := NewClientCredentialsIssuer(c)
		if err != nil {
			return nil, err
		}
		issuer = i
	}

	if lock == nil {
		lock = cluster.Nop{}
	}

	return &Handler{
		c:           c.HTTPClient,
		url:         c.MetricsURL(),
		maxAttempts: c.MaxAttempts,
		store:       store,
		issuer:      issuer,
		lock:        lock,
	}, nil
}

// Stats returns request counts since the Handler was created.
func (h *Handler) Stats() Stats {
	return Stats{
		Posts:     h.posts.Load(),
		Refreshes: h.refreshes.Load(),
	}
}

// PostMetric submits e, making at most MaxAttempts POSTs. A TokenExpired or
// InvalidToken rejection issues and stores a new token, then retries; any
// other rejection fails immediately. A nil error means HTTP 200.
func (h *Handler) PostMetric(ctx context.Context, e *topicmetrics.Envelope) error {
	metric := e.Metric()

	body, err := json.Marshal(e)
	if err != nil {
		return &SubmitError{Kind: Failed, Metric: metric, Err: err}
	}

	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		token, err := h.store.Read()
		if err != nil {
			return &SubmitError{Kind: Failed, Metric: metric, Attempts: attempt - 1, Err: err}
		}

		status, resp, err := h.post(ctx, body, token)
		if err != nil {
			return &SubmitError{Kind: Failed, Metric: metric, Attempts: attempt, Err: err}
		}

		if status == http.StatusOK {
			return nil
		}

		var er errorResponse
		if err := json.Unmarshal(resp, &er); err != nil || er.Error.Code == "" {
			return &SubmitError{
				Kind:       Failed,
				Metric:     metric,
				Attempts:   attempt,
				StatusCode: status,
				Err:        &topicmetrics.APIError{Request: h.url, Message: string(resp)},
			}
		}

		switch er.Error.Code {
		case CodeTokenExpired, CodeInvalidToken:
			if err := h.refresh(ctx, token); err != nil {
				return &SubmitError{
					Kind:       TokenIssue,
					Metric:     metric,
					Attempts:   attempt,
					StatusCode: status,
					Code:       er.Error.Code,
					Err:        err,
				}
			}
		default:
			return &SubmitError{
				Kind:       Failed,
				Metric:     metric,
				Attempts:   attempt,
				StatusCode: status,
				Code:       er.Error.Code,
				Err:        &topicmetrics.APIError{Request: h.url, Message: er.Error.Message},
			}
		}
	}

	return &SubmitError{Kind: Abandoned, Metric: metric, Attempts: h.maxAttempts}
}

// post submits body with the bearer token, returning the status code and
// response body.
func (h *Handler) post(ctx context.Context, body []byte, token string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	h.posts.Add(1)

	resp, err := h.c.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, b, nil
}

// refresh replaces the rejected token. The store is re-read under the lock;
// if another instance already replaced the rejected token, its token is used
// instead of issuing a new one.
func (h *Handler) refresh(ctx context.Context, rejected string) error {
	if err := h.lock.Lock(ctx); err != nil {
		return fmt.Errorf("error acquiring token lock: %w", err)
	}
	defer h.lock.Unlock(ctx)

	current, err := h.store.Read()
	if err != nil {
		return err
	}

	if current != rejected {
		return nil
	}

	token, err := h.issuer.Issue(ctx)
	if err != nil {
		return err
	}

	if err := h.store.Write(token); err != nil {
		return err
	}

	h.refreshes.Add(1)

	return nil
}

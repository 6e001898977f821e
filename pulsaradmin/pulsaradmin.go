// Package pulsaradmin wraps the Pulsar admin REST API calls used to read
// topic statistics.
package pulsaradmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Masterminds/semver"
)

var (
	// Default timeout for admin requests if the Config doesn't specify one.
	defaultTimeout = 10 * time.Second
	// MinBrokerVersion is the first Pulsar release that serves the v2 admin
	// API paths.
	MinBrokerVersion = semver.MustParse("2.0.0")
)

// Client reads topic data from a Pulsar admin endpoint.
type Client struct {
	c         *http.Client
	baseURL   string
	namespace string
}

// Config holds Client configuration parameters.
type Config struct {
	// Required.
	URL       string
	Namespace string
	// Misc.
	Timeout time.Duration
	// HTTPClient overrides the default client. Its own Timeout is left as-is.
	HTTPClient *http.Client
}

// NewClient returns a *Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("admin URL must be set")
	}

	if cfg.Namespace == "" {
		return nil, errors.New("namespace must be set")
	}

	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid admin URL: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		c:         hc,
		baseURL:   strings.TrimSuffix(cfg.URL, "/"),
		namespace: strings.Trim(cfg.Namespace, "/"),
	}, nil
}

// StatsURL returns the persistent topic stats URL for topic.
func (c *Client) StatsURL(topic string) string {
	return fmt.Sprintf("%s/admin/v2/persistent/%s/%s/stats", c.baseURL, c.namespace, topic)
}

// BrokerVersion returns the version reported by the broker serving the admin
// API.
func (c *Client) BrokerVersion(ctx context.Context) (*semver.Version, error) {
	u := c.baseURL + "/admin/v2/brokers/version"

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	// The endpoint may return either a bare string or a JSON string.
	s := strings.TrimSpace(string(body))
	var quoted string
	if json.Unmarshal(body, &quoted) == nil {
		s = quoted
	}

	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, &APIError{Request: u, Message: fmt.Sprintf("unparseable version %q", s)}
	}

	return v, nil
}

// get issues a GET against u and returns the response body of a 200 response.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Request: u, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, &APIError{Request: u, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Request: u, Message: err.Error()}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, ErrTopicNotFound{Request: u}
	default:
		return nil, &APIError{
			Request:    u,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
}

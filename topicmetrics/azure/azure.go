// Package azure implements a topicmetrics Handler that submits custom
// metrics to Azure Monitor.
package azure

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultRegion is the Azure region of the reporting resource. The
	// monitoring endpoint region must match the region of ResourceID.
	DefaultRegion = "westeurope"
	// DefaultLoginURL is the Azure AD authority.
	DefaultLoginURL = "https://login.microsoftonline.com"
	// DefaultResource is the token audience for metric submission.
	DefaultResource = "https://monitoring.azure.com/"
	// DefaultMaxAttempts bounds POSTs per envelope.
	DefaultMaxAttempts = 3

	defaultTimeout = 10 * time.Second
)

// Config holds Handler configuration parameters.
type Config struct {
	// Service principal credentials.
	TenantID     string
	ClientID     string
	ClientSecret string
	// ResourceID is the Azure resource the custom metrics are reported for,
	// e.g. /subscriptions/.../resourceGroups/.../providers/.../pulsar-proxy.
	ResourceID string
	// Region defaults to DefaultRegion.
	Region string
	// MaxAttempts defaults to DefaultMaxAttempts.
	MaxAttempts int
	// Timeout applies to every request and defaults to 10s.
	Timeout time.Duration
	// LoginURL, MonitoringURL and Resource override the Azure endpoints.
	// MonitoringURL defaults to https://{Region}.monitoring.azure.com.
	LoginURL      string
	MonitoringURL string
	Resource      string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// withDefaults returns a copy of the Config with unset fields populated.
func (c Config) withDefaults() Config {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.LoginURL == "" {
		c.LoginURL = DefaultLoginURL
	}
	if c.MonitoringURL == "" {
		c.MonitoringURL = fmt.Sprintf("https://%s.monitoring.azure.com", c.Region)
	}
	if c.Resource == "" {
		c.Resource = DefaultResource
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}

	return c
}

func (c Config) validate() error {
	switch {
	case c.ResourceID == "":
		return errors.New("resource ID must be set")
	case c.MaxAttempts < 1:
		return errors.New("max attempts must be at least 1")
	}

	return nil
}

// MetricsURL returns the custom metrics ingestion URL for the resource.
func (c Config) MetricsURL() string {
	c = c.withDefaults()
	return fmt.Sprintf("%s/%s/metrics",
		strings.TrimSuffix(c.MonitoringURL, "/"),
		strings.Trim(c.ResourceID, "/"))
}

// TokenURL returns the tenant's OAuth2 token endpoint.
func (c Config) TokenURL() string {
	c = c.withDefaults()
	return fmt.Sprintf("%s/%s/oauth2/token", strings.TrimSuffix(c.LoginURL, "/"), c.TenantID)
}

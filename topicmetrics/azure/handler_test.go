package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DataDog/pulsar-metrics/tokenstore"
	"github.com/DataDog/pulsar-metrics/topicmetrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testResourceID = "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/pulsar-proxy"

// stubMonitor is a monitoring endpoint that answers each POST with the next
// response in the list, repeating the last one once exhausted.
type stubMonitor struct {
	mu        sync.Mutex
	responses []stubResponse
	auth      []string
	bodies    [][]byte
	paths     []string
}

type stubResponse struct {
	status int
	body   string
}

func (s *stubMonitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, _ := io.ReadAll(r.Body)
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	s.bodies = append(s.bodies, b)
	s.paths = append(s.paths, r.URL.Path)

	resp := s.responses[len(s.responses)-1]
	if n := len(s.auth) - 1; n < len(s.responses) {
		resp = s.responses[n]
	}

	w.WriteHeader(resp.status)
	fmt.Fprint(w, resp.body)
}

func (s *stubMonitor) posts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.auth)
}

func errorBody(code string) string {
	return fmt.Sprintf(`{"Error":{"Code":"%s","Message":"rejected"}}`, code)
}

// mockIssuer returns token-1, token-2, ... or err.
type mockIssuer struct {
	calls int
	err   error
}

func (m *mockIssuer) Issue(context.Context) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return fmt.Sprintf("token-%d", m.calls), nil
}

func stubEnvelope() *topicmetrics.Envelope {
	series := []topicmetrics.Series{{DimValues: []string{"hfp/v2"}, Sum: 12.3, Count: 1}}
	return topicmetrics.NewEnvelope(time.Unix(0, 0), topicmetrics.MetricMsgRateIn, series)
}

func newTestHandler(t *testing.T, responses []stubResponse, store tokenstore.Store, issuer Issuer) (*Handler, *stubMonitor) {
	t.Helper()

	mon := &stubMonitor{responses: responses}
	s := httptest.NewServer(mon)
	t.Cleanup(s.Close)

	h, err := NewHandler(Config{
		ResourceID:    testResourceID,
		MonitoringURL: s.URL,
		Timeout:       time.Second,
	}, store, issuer, nil)
	require.NoError(t, err)

	return h, mon
}

func TestNewHandler(t *testing.T) {
	store := tokenstore.NewMemory("")

	_, err := NewHandler(Config{}, store, &mockIssuer{}, nil)
	assert.Error(t, err, "missing resource ID")

	_, err = NewHandler(Config{ResourceID: testResourceID, MaxAttempts: -1}, store, &mockIssuer{}, nil)
	assert.Error(t, err, "invalid attempts")

	_, err = NewHandler(Config{ResourceID: testResourceID}, nil, &mockIssuer{}, nil)
	assert.Error(t, err, "missing store")

	// A nil issuer requires credentials.
	_, err = NewHandler(Config{ResourceID: testResourceID}, store, nil, nil)
	assert.Error(t, err, "missing credentials")
}

func TestMetricsURL(t *testing.T) {
	c := Config{ResourceID: testResourceID}
	assert.Equal(t, "https://westeurope.monitoring.azure.com"+testResourceID+"/metrics", c.MetricsURL())

	c.Region = "northeurope"
	assert.Equal(t, "https://northeurope.monitoring.azure.com"+testResourceID+"/metrics", c.MetricsURL())

	c = Config{TenantID: "tenant"}
	assert.Equal(t, "https://login.microsoftonline.com/tenant/oauth2/token", c.TokenURL())
}

func TestPostMetricCachedToken(t *testing.T) {
	store := tokenstore.NewMemory("cached")
	issuer := &mockIssuer{}
	h, mon := newTestHandler(t, []stubResponse{{200, ""}}, store, issuer)

	err := h.PostMetric(context.Background(), stubEnvelope())
	require.NoError(t, err)

	assert.Equal(t, 1, mon.posts())
	assert.Equal(t, 0, issuer.calls)
	assert.Equal(t, "Bearer cached", mon.auth[0])
	assert.Equal(t, testResourceID+"/metrics", mon.paths[0])

	var posted topicmetrics.Envelope
	require.NoError(t, json.Unmarshal(mon.bodies[0], &posted))
	assert.Equal(t, "Pulsar", posted.Data.BaseData.Namespace)
	assert.Equal(t, []string{"Topic"}, posted.Data.BaseData.DimNames)

	assert.Equal(t, Stats{Posts: 1}, h.Stats())
}

func TestPostMetricInvalidToken(t *testing.T) {
	store := tokenstore.NewMemory("stale")
	issuer := &mockIssuer{}
	h, mon := newTestHandler(t, []stubResponse{
		{401, errorBody(CodeInvalidToken)},
		{200, ""},
	}, store, issuer)

	err := h.PostMetric(context.Background(), stubEnvelope())
	require.NoError(t, err)

	assert.Equal(t, 2, mon.posts())
	assert.Equal(t, 1, issuer.calls)
	assert.Equal(t, []string{"Bearer stale", "Bearer token-1"}, mon.auth)

	token, _ := store.Read()
	assert.Equal(t, "token-1", token)
	assert.Equal(t, Stats{Posts: 2, Refreshes: 1}, h.Stats())
}

// TestPostMetricInvalidTokenLogin runs the same exchange with the client
// credentials issuer against a stub login endpoint, so the identity provider
// sees exactly one token request.
func TestPostMetricInvalidTokenLogin(t *testing.T) {
	var logins atomic.Int32
	body := `{"token_type":"Bearer","expires_in":"3599","access_token":"fresh"}`
	login := stubLogin(t, "application/json", body, &logins)

	mon := &stubMonitor{responses: []stubResponse{
		{401, errorBody(CodeInvalidToken)},
		{200, ""},
	}}
	s := httptest.NewServer(mon)
	t.Cleanup(s.Close)

	c := testIssuerConfig(login.URL)
	c.ResourceID = testResourceID
	c.MonitoringURL = s.URL
	c.Timeout = time.Second

	store := tokenstore.NewMemory("stale")
	h, err := NewHandler(c, store, nil, nil)
	require.NoError(t, err)

	require.NoError(t, h.PostMetric(context.Background(), stubEnvelope()))

	assert.Equal(t, 2, mon.posts())
	assert.Equal(t, int32(1), logins.Load())
	assert.Equal(t, []string{"Bearer stale", "Bearer fresh"}, mon.auth)

	token, _ := store.Read()
	assert.Equal(t, "fresh", token)
}

func TestPostMetricTokenExpiredEmptyStore(t *testing.T) {
	store := tokenstore.NewMemory("")
	issuer := &mockIssuer{}
	h, mon := newTestHandler(t, []stubResponse{
		{401, errorBody(CodeTokenExpired)},
		{200, ""},
	}, store, issuer)

	require.NoError(t, h.PostMetric(context.Background(), stubEnvelope()))
	// Header parsing trims the trailing space of an empty bearer token.
	assert.Equal(t, []string{"Bearer", "Bearer token-1"}, mon.auth)
}

func TestPostMetricAttemptsBounded(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		store := tokenstore.NewMemory("")
		issuer := &mockIssuer{}

		mon := &stubMonitor{responses: []stubResponse{{401, errorBody(CodeTokenExpired)}}}
		s := httptest.NewServer(mon)

		h, err := NewHandler(Config{
			ResourceID:    testResourceID,
			MonitoringURL: s.URL,
			MaxAttempts:   n,
		}, store, issuer, nil)
		require.NoError(t, err)

		err = h.PostMetric(context.Background(), stubEnvelope())
		s.Close()

		var se *SubmitError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, Abandoned, se.Kind)
		assert.Equal(t, n, se.Attempts)
		assert.Equal(t, n, mon.posts(), "attempts %d", n)
		// Every rejection is followed by a refresh, including the last.
		assert.Equal(t, n, issuer.calls)
	}
}

func TestPostMetricOtherCodeNotRetried(t *testing.T) {
	store := tokenstore.NewMemory("cached")
	issuer := &mockIssuer{}
	h, mon := newTestHandler(t, []stubResponse{{429, errorBody("RateLimited")}}, store, issuer)

	err := h.PostMetric(context.Background(), stubEnvelope())

	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, Failed, se.Kind)
	assert.Equal(t, "RateLimited", se.Code)
	assert.Equal(t, 429, se.StatusCode)
	assert.Equal(t, 1, mon.posts())
	assert.Equal(t, 0, issuer.calls)
	assert.Equal(t, 0, store.Writes())
}

func TestPostMetricUnparseableBody(t *testing.T) {
	for _, body := range []string{"<html>bad gateway</html>", "", `{"error":"lowercase"}`} {
		issuer := &mockIssuer{}
		h, mon := newTestHandler(t, []stubResponse{{502, body}}, tokenstore.NewMemory("cached"), issuer)

		err := h.PostMetric(context.Background(), stubEnvelope())

		var se *SubmitError
		require.ErrorAs(t, err, &se, body)
		assert.Equal(t, Failed, se.Kind)
		assert.Equal(t, 1, mon.posts())
		assert.Equal(t, 0, issuer.calls)
	}
}

func TestPostMetricIssuerFailure(t *testing.T) {
	issuer := &mockIssuer{err: errors.New("malformed token response")}
	h, mon := newTestHandler(t, []stubResponse{{401, errorBody(CodeTokenExpired)}}, tokenstore.NewMemory("stale"), issuer)

	err := h.PostMetric(context.Background(), stubEnvelope())

	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, TokenIssue, se.Kind)
	assert.Equal(t, 1, mon.posts())
	assert.Equal(t, 1, issuer.calls)
}

func TestPostMetricTransportFailure(t *testing.T) {
	mon := &stubMonitor{responses: []stubResponse{{200, ""}}}
	s := httptest.NewServer(mon)
	url := s.URL
	s.Close()

	h, err := NewHandler(Config{ResourceID: testResourceID, MonitoringURL: url}, tokenstore.NewMemory("cached"), &mockIssuer{}, nil)
	require.NoError(t, err)

	err = h.PostMetric(context.Background(), stubEnvelope())

	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, Failed, se.Kind)
}

// racingLock simulates another instance refreshing the token while this
// one waits for the lock.
type racingLock struct {
	store tokenstore.Store
}

func (l racingLock) Lock(context.Context) error   { return l.store.Write("from-other-instance") }
func (l racingLock) Unlock(context.Context) error { return nil }

func TestPostMetricRefreshedElsewhere(t *testing.T) {
	store := tokenstore.NewMemory("stale")
	issuer := &mockIssuer{}

	mon := &stubMonitor{responses: []stubResponse{{401, errorBody(CodeInvalidToken)}, {200, ""}}}
	s := httptest.NewServer(mon)
	defer s.Close()

	h, err := NewHandler(Config{ResourceID: testResourceID, MonitoringURL: s.URL}, store, issuer, racingLock{store: store})
	require.NoError(t, err)

	require.NoError(t, h.PostMetric(context.Background(), stubEnvelope()))
	assert.Equal(t, 0, issuer.calls)
	assert.Equal(t, []string{"Bearer stale", "Bearer from-other-instance"}, mon.auth)
}

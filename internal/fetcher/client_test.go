package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathis-dumont/horse-racing-prediction/internal/resilience"
)

func newTestClient(baseURL string) *Client {
	return New(Options{
		BaseURL:     baseURL,
		UserAgent:   "test-agent",
		Referer:     "https://www.pmu.fr/",
		Origin:      "https://www.pmu.fr",
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		RatePerSec:  1000,
		RateBurst:   1000,
	})
}

func TestGet_Payload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json, text/plain, */*", r.Header.Get("Accept"))
		assert.Equal(t, "https://www.pmu.fr/", r.Header.Get("Referer"))
		assert.Equal(t, "https://www.pmu.fr", r.Header.Get("Origin"))
		w.Write([]byte(`{"programme":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res, err := c.Get(context.Background(), srv.URL+"/doc")
	require.NoError(t, err)
	assert.False(t, res.Empty)
	assert.JSONEq(t, `{"programme":{}}`, string(res.Body))
}

func TestGet_EmptyResponses(t *testing.T) {
	for _, code := range []int{http.StatusNoContent, http.StatusNotFound} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		c := newTestClient(srv.URL)
		res, err := c.Get(context.Background(), srv.URL+"/doc")
		require.NoError(t, err, "status %d", code)
		assert.True(t, res.Empty, "status %d", code)
		assert.Nil(t, res.Body)
		srv.Close()
	}
}

func TestGet_EmptyBodyIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res, err := c.Get(context.Background(), srv.URL+"/doc")
	require.NoError(t, err)
	assert.True(t, res.Empty)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.retry.InitialBackoff = time.Millisecond
	c.retry.JitterFraction = 0

	res, err := c.Get(context.Background(), srv.URL+"/doc")
	require.NoError(t, err)
	assert.False(t, res.Empty)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_ExhaustedRetriesEscalate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.retry.InitialBackoff = time.Millisecond
	c.retry.JitterFraction = 0

	_, err := c.Get(context.Background(), srv.URL+"/doc")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestGet_RateLimitSurfacedDistinctly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.retry.InitialBackoff = time.Millisecond
	c.retry.JitterFraction = 0

	_, err := c.Get(context.Background(), srv.URL+"/doc")
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimited(err))
}

func TestGet_ClientErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Get(context.Background(), srv.URL+"/doc")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv.URL)
	c.opts.MinDelay = 10 * time.Millisecond
	c.opts.MaxDelay = 20 * time.Millisecond

	_, err := c.Get(ctx, srv.URL+"/doc")
	assert.Error(t, err)
}

func TestURLTemplates(t *testing.T) {
	c := New(Options{BaseURL: "https://api.example/rest/client"})

	assert.Equal(t,
		"https://api.example/rest/client/1/programme/05112025",
		c.ProgramURL("05112025"))
	assert.Equal(t,
		"https://api.example/rest/client/61/programme/05112025/R1/C3/participants",
		c.ParticipantsURL("05112025", 1, 3))
	assert.Equal(t,
		"https://api.example/rest/client/61/programme/05112025/R1/C3/performances-detaillees/pretty",
		c.PerformancesURL("05112025", 1, 3))
	assert.Equal(t,
		"https://api.example/rest/client/1/programme/05112025/R1/C3/rapports-definitifs",
		c.ReportsURL("05112025", 1, 3))
}

func TestPreDispatchDelay_Bounds(t *testing.T) {
	c := New(Options{MinDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond})

	start := time.Now()
	require.NoError(t, c.preDispatchDelay(context.Background()))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
}

func TestPreDispatchDelay_Disabled(t *testing.T) {
	c := New(Options{})
	start := time.Now()
	require.NoError(t, c.preDispatchDelay(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Millisecond)
}

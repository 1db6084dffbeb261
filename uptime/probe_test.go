package uptime_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amartya2002/uptime-monitor-core/uptime"
)

func newProber(cfg uptime.ProberConfig) *uptime.Prober {
	return uptime.NewProber(cfg, zap.NewNop())
}

func statusServer(t *testing.T, code int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// closedPortURL returns a URL nobody listens on.
func closedPortURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return "http://" + addr
}

func TestProbe_Up(t *testing.T) {
	ts := statusServer(t, http.StatusOK)

	out := newProber(uptime.ProberConfig{Timeout: 2 * time.Second}).
		Probe(context.Background(), uptime.Target{ID: 7, Name: "portal", URL: ts.URL, Status: uptime.StatusDown})

	assert.True(t, out.Attempted)
	assert.Equal(t, uptime.StatusUp, out.Status)
	require.NotNil(t, out.HTTPStatus)
	assert.Equal(t, 200, *out.HTTPStatus)
	assert.Equal(t, uint(7), out.SystemID)
	assert.Equal(t, "portal", out.SystemName)
	assert.Empty(t, out.Error)
	assert.Equal(t, uptime.CategoryNone, out.Category)
	assert.False(t, out.CheckedAt.IsZero())
}

func TestProbe_ErrorStatusIsDown(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		ts := statusServer(t, code)
		out := newProber(uptime.ProberConfig{Timeout: 2 * time.Second}).
			Probe(context.Background(), uptime.Target{ID: 1, Name: "s", URL: ts.URL})

		assert.Equal(t, uptime.StatusDown, out.Status, code)
		assert.Equal(t, uptime.CategoryHTTPErrorStatus, out.Category, code)
		require.NotNil(t, out.HTTPStatus)
		assert.Equal(t, code, *out.HTTPStatus)
		assert.Contains(t, out.Error, "HTTP ")
	}
}

func TestProbe_FollowsRedirects(t *testing.T) {
	target := statusServer(t, http.StatusOK)
	hop := httptest.NewServer(http.RedirectHandler(target.URL, http.StatusFound))
	defer hop.Close()

	out := newProber(uptime.ProberConfig{Timeout: 2 * time.Second, RedirectLimit: 5}).
		Probe(context.Background(), uptime.Target{ID: 1, Name: "s", URL: hop.URL})

	assert.Equal(t, uptime.StatusUp, out.Status)
	require.NotNil(t, out.HTTPStatus)
	assert.Equal(t, 200, *out.HTTPStatus)
}

func TestProbe_TooManyRedirectsIsDown(t *testing.T) {
	var loop *httptest.Server
	loop = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, loop.URL+"/again", http.StatusFound)
	}))
	defer loop.Close()

	out := newProber(uptime.ProberConfig{Timeout: 2 * time.Second, RedirectLimit: 2}).
		Probe(context.Background(), uptime.Target{ID: 1, Name: "s", URL: loop.URL})

	assert.True(t, out.Attempted)
	assert.Equal(t, uptime.StatusDown, out.Status)
	assert.NotEmpty(t, out.RawError)
}

func TestProbe_ConnectionRefused(t *testing.T) {
	out := newProber(uptime.ProberConfig{Timeout: 2 * time.Second}).
		Probe(context.Background(), uptime.Target{ID: 1, Name: "s", URL: closedPortURL(t)})

	assert.Equal(t, uptime.StatusDown, out.Status)
	assert.Equal(t, uptime.CategoryConnectionRefused, out.Category)
	assert.Equal(t, "Connection refused", out.Error)
	assert.Nil(t, out.HTTPStatus)
}

func TestProbe_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	start := time.Now()
	out := newProber(uptime.ProberConfig{Timeout: 100 * time.Millisecond}).
		Probe(context.Background(), uptime.Target{ID: 1, Name: "slow", URL: ts.URL})

	assert.Less(t, time.Since(start), 1500*time.Millisecond)
	assert.Equal(t, uptime.StatusDown, out.Status)
	assert.Equal(t, uptime.CategoryTimeout, out.Category)
	assert.Equal(t, "Request timeout", out.Error)
}

func TestProbe_NoURLIsSkipped(t *testing.T) {
	out := newProber(uptime.ProberConfig{}).
		Probe(context.Background(), uptime.Target{ID: 3, Name: "intranet", Status: uptime.StatusMaintenance})

	assert.False(t, out.Attempted)
	assert.Equal(t, uptime.StatusMaintenance, out.Status)
	assert.Equal(t, "No URL configured", out.Error)
}

func TestProbe_SendsBrowserHeaders(t *testing.T) {
	var ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	newProber(uptime.ProberConfig{Timeout: 2 * time.Second}).
		Probe(context.Background(), uptime.Target{ID: 1, Name: "s", URL: ts.URL})

	assert.True(t, strings.HasPrefix(ua, "Mozilla/5.0"), ua)
}

func TestProbe_SelfSignedAcceptedByDefault(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	out := newProber(uptime.ProberConfig{Timeout: 2 * time.Second}).
		Probe(context.Background(), uptime.Target{ID: 1, Name: "tls", URL: ts.URL})

	assert.Equal(t, uptime.StatusUp, out.Status)
}

func TestProbe_SelfSignedRejectedWithVerification(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	out := newProber(uptime.ProberConfig{Timeout: 2 * time.Second, VerifyTLS: true}).
		Probe(context.Background(), uptime.Target{ID: 1, Name: "tls", URL: ts.URL})

	assert.Equal(t, uptime.StatusDown, out.Status)
	assert.Equal(t, uptime.CategoryCertificateVerification, out.Category)
}

package revocation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestChecker(c *Checker, server *httptest.Server) {
	c.client = server.Client()
}

func TestIsRevoked_NotRevoked(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"revoked": false}`))
	}))
	defer server.Close()

	c := New(DefaultBudget(), time.Minute, false)
	newTestChecker(c, server)

	revoked, _, err := c.IsRevoked(context.Background(), "did:key:zabc", server.URL, time.Now())
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestIsRevoked_Revoked(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"revoked": true, "reason": "compromised key"}`))
	}))
	defer server.Close()

	c := New(DefaultBudget(), time.Minute, false)
	newTestChecker(c, server)

	revoked, reason, err := c.IsRevoked(context.Background(), "did:key:zabc", server.URL, time.Now())
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, "compromised key", reason)
}

func TestIsRevoked_FailOpenByDefault(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(DefaultBudget(), time.Minute, false)
	newTestChecker(c, server)

	revoked, _, err := c.IsRevoked(context.Background(), "did:key:zabc", server.URL, time.Now())
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestIsRevoked_DenyOnFailureOptIn(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(DefaultBudget(), time.Minute, true)
	newTestChecker(c, server)

	revoked, _, err := c.IsRevoked(context.Background(), "did:key:zabc", server.URL, time.Now())
	require.Error(t, err)
	assert.True(t, revoked)
}

func TestIsRevoked_CachedWithinTTL(t *testing.T) {
	calls := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"revoked": false}`))
	}))
	defer server.Close()

	c := New(DefaultBudget(), time.Minute, false)
	newTestChecker(c, server)

	now := time.Now()
	_, _, err := c.IsRevoked(context.Background(), "did:key:zabc", server.URL, now)
	require.NoError(t, err)
	_, _, err = c.IsRevoked(context.Background(), "did:key:zabc", server.URL, now.Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestIsRevoked_EmptyEndpointNeverRevoked(t *testing.T) {
	c := New(DefaultBudget(), time.Minute, true)
	revoked, _, err := c.IsRevoked(context.Background(), "did:key:zabc", "", time.Now())
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestIsRevoked_NilCheckerAlwaysAllows(t *testing.T) {
	var c *Checker
	revoked, _, err := c.IsRevoked(context.Background(), "did:key:zabc", "https://example.com", time.Now())
	require.NoError(t, err)
	assert.False(t, revoked)
}

// TestIsRevoked_ConcurrentDIDsShareCacheSafely drives many agents'
// verify calls at once, the shape a busy authhandler produces, and
// checks the per-DID cache serializes correctly under a race detector
// without serializing unrelated DIDs against each other.
func TestIsRevoked_ConcurrentDIDsShareCacheSafely(t *testing.T) {
	var hits sync.Map
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, _ := hits.LoadOrStore(r.URL.Path, new(int64))
		atomic.AddInt64(v.(*int64), 1)
		w.Write([]byte(`{"revoked": false}`))
	}))
	defer server.Close()

	c := New(DefaultBudget(), time.Minute, false)
	newTestChecker(c, server)

	now := time.Now()
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		did := fmt.Sprintf("did:key:zabc-%d", i%5)
		g.Go(func() error {
			_, _, err := c.IsRevoked(context.Background(), did, server.URL, now)
			return err
		})
	}
	require.NoError(t, g.Wait())

	// Each of the 5 distinct DIDs should have hit the endpoint at most
	// once despite the fan-in; the cache, not the server, absorbed the
	// repeats.
	total := 0
	hits.Range(func(_, v any) bool {
		total += int(atomic.LoadInt64(v.(*int64)))
		return true
	})
	assert.LessOrEqual(t, total, 5)
}

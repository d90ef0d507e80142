package ipfs_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/canopy-network/stakewatch/pkg/ipfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const findProvsStream = `{"Extra":"","ID":"","Responses":null,"Type":0}
{"Extra":"","ID":"","Responses":[{"Addrs":["/ip4/1.2.3.4/tcp/4001"],"ID":"12D3KooWA"}],"Type":4}
{"Extra":"","ID":"","Responses":[{"Addrs":[],"ID":"12D3KooWB"},{"Addrs":[],"ID":"12D3KooWA"}],"Type":4}
{"Extra":"","ID":"QmPeer","Responses":null,"Type":6}
`

func newNode(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/id", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = fmt.Fprint(w, `{"ID":"12D3KooWSelf","AgentVersion":"kubo/0.29.0"}`)
	})
	mux.HandleFunc("/api/v0/routing/findprovs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("arg") != "QmFile" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, findProvsStream)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TestClient_PingAndReady tests readiness after a successful ping
func TestClient_PingAndReady(t *testing.T) {
	srv := newNode(t)
	c := ipfs.New(ipfs.Opts{Endpoints: []string{srv.URL + "/"}, Logger: zaptest.NewLogger(t)})

	assert.False(t, c.Ready())
	assert.False(t, c.Initialized())

	info, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12D3KooWSelf", info.ID)
	assert.True(t, c.Initialized())
	assert.True(t, c.Ready())
}

// TestClient_FindProviders tests counting distinct provider peers
func TestClient_FindProviders(t *testing.T) {
	srv := newNode(t)
	c := ipfs.New(ipfs.Opts{Endpoints: []string{srv.URL}})

	n, err := c.FindProviders(context.Background(), "QmFile")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = c.FindProviders(context.Background(), "")
	assert.Error(t, err)
}

// TestClient_Failover tests skipping a failing endpoint and opening its breaker
func TestClient_Failover(t *testing.T) {
	var badCalls atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		badCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(bad.Close)
	good := newNode(t)

	c := ipfs.New(ipfs.Opts{
		Endpoints:       []string{bad.URL, good.URL},
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	})

	for i := 0; i < 3; i++ {
		n, err := c.FindProviders(context.Background(), "QmFile")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
	assert.Equal(t, int32(2), badCalls.Load(), "breaker skips the bad endpoint once open")
}

// TestClient_AllEndpointsDown tests readiness when every breaker is open
func TestClient_AllEndpointsDown(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `{"ID":"12D3KooWSelf"}`)
	}))
	t.Cleanup(srv.Close)

	c := ipfs.New(ipfs.Opts{Endpoints: []string{srv.URL}, BreakerFailures: 1, BreakerCooldown: time.Minute})
	_, err := c.Ping(context.Background())
	require.NoError(t, err)
	require.True(t, c.Ready())

	healthy.Store(false)
	_, err = c.FindProviders(context.Background(), "QmFile")
	require.Error(t, err)
	assert.False(t, c.Ready())
	assert.True(t, c.Initialized())

	_, err = c.FindProviders(context.Background(), "QmFile")
	assert.ErrorIs(t, err, ipfs.ErrNoEndpoints)
}

// TestClient_NoEndpoints tests an unconfigured client
func TestClient_NoEndpoints(t *testing.T) {
	c := ipfs.New(ipfs.Opts{})
	_, err := c.Ping(context.Background())
	assert.ErrorIs(t, err, ipfs.ErrNoEndpoints)
	assert.False(t, c.Ready())
}

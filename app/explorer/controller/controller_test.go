package controller

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/canopy-network/stakewatch/app/explorer/types"
	"github.com/canopy-network/stakewatch/pkg/addressbook"
	"github.com/canopy-network/stakewatch/pkg/favorites"
	"github.com/canopy-network/stakewatch/pkg/ipfs"
	"github.com/canopy-network/stakewatch/pkg/market"
	"github.com/canopy-network/stakewatch/pkg/staking"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const (
	testToken    = "test-token"
	testUser     = "admin"
	testPassword = "s3cret"
)

const findProvsStream = `{"ID":"","Responses":[{"Addrs":[],"ID":"12D3KooWA"},{"Addrs":[],"ID":"12D3KooWB"},{"Addrs":[],"ID":"12D3KooWC"}],"Type":4}
`

type testEnv struct {
	c       *Controller
	router  *mux.Router
	node    *httptest.Server
	release chan struct{}
	once    sync.Once
}

// releaseLookups unblocks every pending provider lookup on the fake node.
func (e *testEnv) releaseLookups() {
	e.once.Do(func() { close(e.release) })
}

// newIPFSNode returns a fake storage node whose provider lookups block until release is closed.
func newIPFSNode(t *testing.T, release <-chan struct{}) *httptest.Server {
	t.Helper()
	m := http.NewServeMux()
	m.HandleFunc("/api/v0/id", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"ID":"12D3KooWSelf","AgentVersion":"kubo/0.29.0"}`)
	})
	m.HandleFunc("/api/v0/routing/findprovs", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = fmt.Fprint(w, findProvsStream)
	})
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	return srv
}

// setupTestController creates a controller wired to in-memory components
func setupTestController(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	release := make(chan struct{})
	node := newIPFSNode(t, release)
	client := ipfs.New(ipfs.Opts{Endpoints: []string{node.URL}, Logger: logger})

	book := addressbook.New(addressbook.Entry{Address: "v2", Name: "Alice"})
	hub := types.NewHub()
	list := market.NewWatchList()

	app := &types.App{
		Logger:    logger,
		Overview:  staking.NewOverview(logger, staking.Visibility{IdentityEnabled: true, Book: book}),
		Book:      book,
		Favorites: favorites.NewMemoryStore(),
		WatchList: list,
		ListView:  market.NewListView(),
		Selection: market.NewSelection(),
		Refresher: market.NewRefresher(list, client, hub, logger, 2),
		IPFS:      client,
		Notifier:  hub,
		Hub:       hub,
	}
	t.Cleanup(app.Refresher.Close)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	c := &Controller{
		App:        app,
		AdminToken: testToken,
		AuthUser:   testUser,
		AuthHash:   hash,
		JWTSecret:  []byte("test-secret"),
	}
	router, err := c.NewRouter()
	require.NoError(t, err)

	env := &testEnv{c: c, router: router, node: node, release: release}
	t.Cleanup(env.releaseLookups)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// loadElection seeds validators v1 and v2, elected e1 and waiting w1.
func (e *testEnv) loadElection() {
	e.c.App.Overview.SetWaiting([]string{"w1"})
	e.c.App.Overview.SetElection(staking.ElectionState{
		Validators:  []string{"v1", "v2"},
		NextElected: []string{"v1", "v2", "e1"},
	})
}

func rowIDs(rows []staking.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.AccountID)
	}
	return out
}

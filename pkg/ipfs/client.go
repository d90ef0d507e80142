// Package ipfs talks to the HTTP RPC API of one or more IPFS nodes.
package ipfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canopy-network/stakewatch/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"
)

const (
	findProvsPath = "/api/v0/routing/findprovs"
	idPath        = "/api/v0/id"

	// eventProvider is the routing event type carrying provider records.
	eventProvider = 4

	// maxDrain bounds how much of an unread body is discarded for connection reuse.
	maxDrain = 64 << 10
)

var (
	// ErrNoEndpoints is returned when every endpoint is unconfigured or has an open breaker.
	ErrNoEndpoints = errors.New("no ipfs endpoint available")
)

// Client is an IPFS RPC client with a token bucket and a per-endpoint circuit breaker.
type Client struct {
	endpoints []string
	client    *http.Client
	logger    *zap.Logger

	// token bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// circuit breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration

	pingTimeout time.Duration
	initialized atomic.Bool
}

// Opts is the set of options for a new Client.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// New creates a new Client. Timeout bounds Ping only; routing queries run until the node
// ends the stream or the caller's context is done.
func New(o Opts) *Client {
	if o.RPS <= 0 {
		o.RPS = 10
	}
	if o.Burst <= 0 {
		o.Burst = 20
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	c := &Client{
		endpoints:        utils.Dedup(o.Endpoints),
		client:           client,
		logger:           o.Logger,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
		pingTimeout:      o.Timeout,
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

func (c *Client) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= c.refillEvery {
		if atomic.LoadInt64(&c.tokens) < c.maxTokens {
			atomic.AddInt64(&c.tokens, 1)
		}
		c.lastRefill.Store(now)
	}
}

func (c *Client) acquire(ctx context.Context) error {
	for {
		c.refill()
		if atomic.LoadInt64(&c.tokens) > 0 {
			atomic.AddInt64(&c.tokens, -1)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.refillEvery / 2):
		}
	}
}

func (c *Client) isOpen(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

func (c *Client) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.opened[ep] = time.Now().Add(c.breakerCooldown)
		c.logger.Warn("IPFS endpoint breaker opened", zap.String("endpoint", ep))
	}
}

func (c *Client) noteSuccess(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep] = 0
}

// Initialized reports whether any endpoint has answered a Ping.
func (c *Client) Initialized() bool {
	return c.initialized.Load()
}

// Ready reports whether lookups can be attempted: the node answered once and at least
// one endpoint breaker is closed.
func (c *Client) Ready() bool {
	if !c.Initialized() {
		return false
	}
	for _, ep := range c.endpoints {
		if !c.isOpen(ep) {
			return true
		}
	}
	return false
}

// PeerInfo is the subset of /api/v0/id used here.
type PeerInfo struct {
	ID           string `json:"ID"`
	AgentVersion string `json:"AgentVersion"`
}

// Ping asks the first healthy endpoint for its identity.
func (c *Client) Ping(ctx context.Context) (PeerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	var info PeerInfo
	err := c.post(ctx, idPath, nil, func(body io.Reader) error {
		return json.NewDecoder(body).Decode(&info)
	})
	if err != nil {
		return PeerInfo{}, err
	}
	c.initialized.Store(true)
	return info, nil
}

type routingEvent struct {
	Type      int `json:"Type"`
	Responses []struct {
		ID string `json:"ID"`
	} `json:"Responses"`
}

// FindProviders counts the distinct peers providing fileCid.
func (c *Client) FindProviders(ctx context.Context, fileCid string) (int, error) {
	if fileCid == "" {
		return 0, errors.New("fileCid is required")
	}
	providers := map[string]struct{}{}
	err := c.post(ctx, findProvsPath, url.Values{"arg": {fileCid}}, func(body io.Reader) error {
		clear(providers)
		dec := json.NewDecoder(body)
		for {
			var ev routingEvent
			if err := dec.Decode(&ev); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("decode routing event: %w", err)
			}
			if ev.Type != eventProvider {
				continue
			}
			for _, r := range ev.Responses {
				if r.ID != "" {
					providers[r.ID] = struct{}{}
				}
			}
		}
	})
	if err != nil {
		return 0, err
	}
	return len(providers), nil
}

// post tries each endpoint in order, skipping open breakers. read consumes a 2xx body.
func (c *Client) post(ctx context.Context, path string, query url.Values, read func(io.Reader) error) error {
	if len(c.endpoints) == 0 {
		return ErrNoEndpoints
	}

	lastErr := ErrNoEndpoints
	for _, ep := range c.endpoints {
		if c.isOpen(ep) {
			continue
		}
		if err := c.acquire(ctx); err != nil {
			return err
		}

		target := ep + path
		if len(query) > 0 {
			target += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
		if err != nil {
			return err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			c.noteFailure(ep)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("ipfs %s: server %d", ep, resp.StatusCode)
			c.noteFailure(ep)
			_ = closeBody(resp.Body)
			continue
		}
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("ipfs %s: http %d", ep, resp.StatusCode)
			_ = closeBody(resp.Body)
			continue
		}

		readErr := read(resp.Body)
		if cerr := closeBody(resp.Body); cerr != nil && readErr == nil {
			readErr = cerr
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		c.noteSuccess(ep)
		return nil
	}
	return lastErr
}

// closeBody discards at most maxDrain unread bytes and closes body. Larger leftovers,
// such as an abandoned routing stream, close the connection instead.
func closeBody(body io.ReadCloser) error {
	_, _ = io.CopyN(io.Discard, body, maxDrain)
	return body.Close()
}

// Package client mirrors the shrine site configuration for Go consumers.
// The mirror is fetched from the API and deep-merged over hardcoded
// defaults; when the server is unreachable it falls back to a locally
// persisted snapshot, then to the defaults alone. Writes are optimistic:
// the local mirror updates immediately and is reverted wholesale if the
// server rejects the change.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/foxshrine/shrine-api/internal/sitecfg"
)

// ErrSessionExpired is returned when a request fails 401 even after a
// refresh attempt; the client's credentials are cleared when it occurs.
var ErrSessionExpired = errors.New("session expired")

const (
	defaultRefreshInterval = 5 * time.Minute
	loadTimeout            = 10 * time.Second
)

// Client is a read-through mirror of the site configuration.
type Client struct {
	baseURL  string
	http     *http.Client
	snapshot string
	interval time.Duration

	mu      sync.RWMutex
	config  map[string]any
	online  bool
	access  string
	refresh string

	stopOnce sync.Once
	stop     chan struct{}
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithSnapshotPath sets where fetched config is persisted for offline use.
func WithSnapshotPath(p string) Option { return func(c *Client) { c.snapshot = p } }

// WithRefreshInterval overrides the 5 minute auto-refresh interval.
func WithRefreshInterval(d time.Duration) Option { return func(c *Client) { c.interval = d } }

// WithCredentials seeds the bearer token pair used for writes.
func WithCredentials(access, refresh string) Option {
	return func(c *Client) { c.access, c.refresh = access, refresh }
}

// New builds a client. Call Load to populate it.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		http:     &http.Client{},
		snapshot: filepath.Join(os.TempDir(), "shrine-config.json"),
		interval: defaultRefreshInterval,
		config:   Defaults(),
		online:   true,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type configResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
}

type snapshotFile struct {
	SavedAt time.Time      `json:"savedAt"`
	Data    map[string]any `json:"data"`
}

// Load fetches the full configuration and installs it over the defaults.
// On fetch failure it falls back to the persisted snapshot, then to the
// defaults already in place, and reports nothing in either case: the
// mirror always stays usable.
func (c *Client) Load(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	data, err := c.fetch(ctx)
	if err != nil {
		if snap, ok := c.readSnapshot(); ok {
			c.install(snap)
		}
		return
	}
	c.install(data)
	c.writeSnapshot(data)
}

// StartAutoRefresh re-fetches on the configured interval while the client
// is online. Ticks are not single-flighted: a slow fetch may overlap the
// next tick.
func (c *Client) StartAutoRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if c.Online() {
					c.Load(ctx)
				}
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the auto-refresh loop.
func (c *Client) Stop() { c.stopOnce.Do(func() { close(c.stop) }) }

// SetOnline flips the connectivity flag. Transitioning offline to online
// triggers an immediate refetch.
func (c *Client) SetOnline(ctx context.Context, online bool) {
	c.mu.Lock()
	wasOnline := c.online
	c.online = online
	c.mu.Unlock()
	if online && !wasOnline {
		c.Load(ctx)
	}
}

// Online reports the connectivity flag.
func (c *Client) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// Get reads the value at a dot-delimited path of the mirrored config.
func (c *Client) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sitecfg.GetPath(c.config, path)
}

// Config returns a deep copy of the mirrored configuration.
func (c *Client) Config() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sitecfg.Clone(c.config)
}

// Update optimistically sets the value at a dot-path and persists it to
// the server. A rejected write restores the entire pre-mutation snapshot;
// concurrent local edits made during the round trip are lost with it.
func (c *Client) Update(ctx context.Context, path string, value any) error {
	c.mu.Lock()
	before := sitecfg.Clone(c.config)
	sitecfg.SetPath(c.config, path, value)
	c.mu.Unlock()

	body, err := json.Marshal(map[string]any{"value": value})
	if err == nil {
		err = c.putConfig(ctx, path, body)
	}
	if err != nil {
		c.install(before)
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

func (c *Client) putConfig(ctx context.Context, path string, body []byte) error {
	resp, err := c.doAuthed(ctx, http.MethodPut, "/config/"+path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server rejected update: %s", resp.Status)
	}
	return nil
}

// doAuthed performs an authenticated request with one-shot refresh-and-
// retry: the first 401 triggers a single token refresh and a single retry,
// a second 401 clears credentials and surfaces ErrSessionExpired.
func (c *Client) doAuthed(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	resp, err := c.send(ctx, method, path, body, c.accessToken())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if err := c.refreshTokens(ctx); err != nil {
		c.clearCredentials()
		return nil, ErrSessionExpired
	}
	resp, err = c.send(ctx, method, path, body, c.accessToken())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.clearCredentials()
		return nil, ErrSessionExpired
	}
	return resp, nil
}

func (c *Client) refreshTokens(ctx context.Context) error {
	c.mu.RLock()
	refresh := c.refresh
	c.mu.RUnlock()
	if refresh == "" {
		return errors.New("no refresh token")
	}

	body, _ := json.Marshal(map[string]string{"refreshToken": refresh})
	resp, err := c.send(ctx, http.MethodPost, "/auth/refresh", body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh rejected: %s", resp.Status)
	}

	var out struct {
		Tokens struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	c.mu.Lock()
	c.access = out.Tokens.AccessToken
	c.refresh = out.Tokens.RefreshToken
	c.mu.Unlock()
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, bearer string) (*http.Response, error) {
	var rd *bytes.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.http.Do(req)
}

func (c *Client) fetch(ctx context.Context) (map[string]any, error) {
	resp, err := c.getConfig(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config fetch: %s", resp.Status)
	}
	var out configResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if !out.Success || out.Data == nil {
		return nil, errors.New("config fetch: malformed response")
	}
	return out.Data, nil
}

// getConfig performs the read with the stored credentials, refreshing a
// stale access token once through doAuthed. Config reads are public, so a
// dead session degrades to an anonymous request instead of failing the
// refresh cycle.
func (c *Client) getConfig(ctx context.Context) (*http.Response, error) {
	if c.accessToken() == "" {
		return c.send(ctx, http.MethodGet, "/config", nil, "")
	}
	resp, err := c.doAuthed(ctx, http.MethodGet, "/config", nil)
	if errors.Is(err, ErrSessionExpired) {
		return c.send(ctx, http.MethodGet, "/config", nil, "")
	}
	return resp, err
}

// install replaces the mirror with defaults overlaid by data.
func (c *Client) install(data map[string]any) {
	merged := sitecfg.Merge(Defaults(), data)
	c.mu.Lock()
	c.config = merged
	c.mu.Unlock()
}

func (c *Client) readSnapshot() (map[string]any, bool) {
	raw, err := os.ReadFile(c.snapshot)
	if err != nil {
		return nil, false
	}
	var snap snapshotFile
	if err := json.Unmarshal(raw, &snap); err != nil || snap.Data == nil {
		return nil, false
	}
	return snap.Data, true
}

func (c *Client) writeSnapshot(data map[string]any) {
	raw, err := json.Marshal(snapshotFile{SavedAt: time.Now().UTC(), Data: data})
	if err != nil {
		return
	}
	_ = os.WriteFile(c.snapshot, raw, 0o644)
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access
}

func (c *Client) clearCredentials() {
	c.mu.Lock()
	c.access, c.refresh = "", ""
	c.mu.Unlock()
}

// Package bus carries the message protocol between the three execution
// contexts (cache host, page scanner, settings editor). Contexts cannot
// share memory: a handler in the same process is dispatched as a plain
// function call, a handler in another process is reached over HTTP. Callers
// never need to know which; every request gets at most one response.
package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Handler is a transport-agnostic message endpoint: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Router dispatches messages to local handlers or remote HTTP endpoints.
// Thread-safe.
type Router struct {
	mu      sync.RWMutex
	local   map[string]Handler
	remote  map[string]Handler
	logger  *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates an empty Router.
func New(opts ...Option) *Router {
	r := &Router{
		local:  make(map[string]Handler),
		remote: make(map[string]Handler),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers an in-process handler for a message name.
func (r *Router) RegisterLocal(name string, h Handler) {
	r.mu.Lock()
	r.local[name] = h
	r.mu.Unlock()
}

// RemoteOption configures a remote registration.
type RemoteOption func(*remoteConfig)

type remoteConfig struct {
	timeout time.Duration
	client  *http.Client
}

// WithTimeout sets the per-message HTTP timeout. Default: 30s.
func WithTimeout(d time.Duration) RemoteOption {
	return func(c *remoteConfig) { c.timeout = d }
}

// WithClient sets a custom HTTP client (timeout is then the caller's).
func WithClient(hc *http.Client) RemoteOption {
	return func(c *remoteConfig) { c.client = hc }
}

// maxResponseBody caps remote response reads. Profiles are small.
const maxResponseBody int64 = 1 << 20

// RegisterRemote routes a message name to another context's bus endpoint.
// baseURL is the root the remote Router is served under; the message name
// is appended as /msg/{name}.
func (r *Router) RegisterRemote(name, baseURL string, opts ...RemoteOption) {
	cfg := remoteConfig{timeout: 30 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}
	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/msg/" + name

	h := func(ctx context.Context, payload []byte) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("bus: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("bus: %s: %w", name, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("bus: %s: read response: %w", name, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("bus: %s: status %d: %s", name, resp.StatusCode, body)
		}
		return body, nil
	}

	r.mu.Lock()
	r.remote[name] = h
	r.mu.Unlock()
}

// Call dispatches a message. Local handlers win over remote routes; an
// unknown message name is an error.
func (r *Router) Call(ctx context.Context, name string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.local[name]
	if !ok {
		h, ok = r.remote[name]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("bus: no handler for message %q", name)
	}
	return h(ctx, payload)
}

// ServeHTTP exposes the router's local handlers at POST /msg/{name} so
// other processes can reach them via RegisterRemote.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name, ok := strings.CutPrefix(req.URL.Path, "/msg/")
	if !ok || name == "" {
		http.NotFound(w, req)
		return
	}

	r.mu.RLock()
	h, found := r.local[name]
	r.mu.RUnlock()
	if !found {
		http.Error(w, fmt.Sprintf("unknown message %q", name), http.StatusNotFound)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(req.Body, maxResponseBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	resp, err := h(req.Context(), payload)
	if err != nil {
		r.logger.Error("bus: handler failed", "message", name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(resp)
}

// CallJSON marshals in, dispatches name, and unmarshals the response into
// out (skipped when out is nil).
func (r *Router) CallJSON(ctx context.Context, name string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("bus: marshal %s: %w", name, err)
		}
	}

	resp, err := r.Call(ctx, name, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("bus: unmarshal %s response: %w", name, err)
	}
	return nil
}

package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxReplyBytes = 16 << 20

	// DefaultUpstashTimeout bounds every Upstash request.
	DefaultUpstashTimeout = 5 * time.Second
)

// Reply is a raw Upstash REST response.
type Reply struct {
	Status int
	Body   []byte
}

// UpstashStore talks to an Upstash Redis database over its REST API.
type UpstashStore struct {
	baseURL string
	token   string
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// UpstashOption configures an UpstashStore.
type UpstashOption func(*UpstashStore)

// WithRateLimit paces requests to rps per second. Non-positive values
// leave requests unpaced.
func WithRateLimit(rps float64) UpstashOption {
	return func(u *UpstashStore) {
		if rps > 0 {
			u.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithClient sets the HTTP client. Its own Timeout applies as given.
func WithClient(c *http.Client) UpstashOption {
	return func(u *UpstashStore) {
		if c != nil {
			u.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
// Non-positive values keep DefaultUpstashTimeout.
func WithTimeout(d time.Duration) UpstashOption {
	return func(u *UpstashStore) {
		if d > 0 {
			u.timeout = d
		}
	}
}

// NewUpstashStore creates a client for the database at baseURL.
func NewUpstashStore(baseURL, token string, opts ...UpstashOption) (*UpstashStore, error) {
	if baseURL == "" || token == "" {
		return nil, fmt.Errorf("upstash: %w", ErrNotConfigured)
	}
	u := &UpstashStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: DefaultUpstashTimeout,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = &http.Client{Timeout: u.timeout}
	}
	return u, nil
}

// Fetch issues GET {base}/get/{key} and returns the raw reply.
func (u *UpstashStore) Fetch(ctx context.Context, key string) (Reply, error) {
	return u.do(ctx, http.MethodGet, u.baseURL+"/get/"+url.PathEscape(key), nil)
}

// Exec posts a command array such as ["SET", key, value] and returns the
// raw reply.
func (u *UpstashStore) Exec(ctx context.Context, args ...string) (Reply, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return Reply{}, fmt.Errorf("encode command: %w", err)
	}
	return u.do(ctx, http.MethodPost, u.baseURL, body)
}

func (u *UpstashStore) do(ctx context.Context, method, target string, body []byte) (Reply, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return Reply{}, err
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return Reply{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return Reply{}, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	return Reply{Status: resp.StatusCode, Body: data}, nil
}

type upstashResult struct {
	Result *string `json:"result"`
	Error  string  `json:"error"`
}

// Get implements Store.
func (u *UpstashStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	rep, err := u.Fetch(ctx, key)
	if err != nil {
		return nil, false, err
	}
	res, err := decodeReply(rep)
	if err != nil {
		return nil, false, fmt.Errorf("upstash get %s: %w", key, err)
	}
	if res.Result == nil {
		return nil, false, nil
	}
	return []byte(*res.Result), true, nil
}

// Set implements Store.
func (u *UpstashStore) Set(ctx context.Context, key string, value []byte) error {
	rep, err := u.Exec(ctx, "SET", key, string(value))
	if err != nil {
		return err
	}
	if _, err := decodeReply(rep); err != nil {
		return fmt.Errorf("upstash set %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (u *UpstashStore) Close() error { return nil }

func decodeReply(rep Reply) (upstashResult, error) {
	var res upstashResult
	if rep.Status != http.StatusOK {
		_ = json.Unmarshal(rep.Body, &res)
		return res, fmt.Errorf("%w: status %d %s", ErrUpstream, rep.Status, res.Error)
	}
	if err := json.Unmarshal(rep.Body, &res); err != nil {
		return res, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	if res.Error != "" {
		return res, fmt.Errorf("%w: %s", ErrUpstream, res.Error)
	}
	return res, nil
}

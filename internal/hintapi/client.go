package hintapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Client queries a remote engine API for best-move hints. Hints are advisory:
// the arena never feeds them back into session state.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type hintResponse struct {
	Success    bool     `json:"success"`
	BestMove   string   `json:"bestmove"`
	Evaluation *float64 `json:"evaluation"`
	Mate       *int     `json:"mate"`
}

// Hint is the advisory engine output for one position.
type Hint struct {
	BestMove   string
	Evaluation *float64
	Mate       *int
}

// BestMove fetches a hint for the given FEN at the given search depth.
func (c *Client) BestMove(ctx context.Context, fen string, depth int) (*Hint, error) {
	if strings.TrimSpace(fen) == "" {
		return nil, errors.New("fen is required")
	}
	if depth <= 0 {
		depth = 12
	}

	q := url.Values{}
	q.Set("fen", fen)
	q.Set("depth", fmt.Sprintf("%d", depth))

	var resp hintResponse
	if err := c.getJSON(ctx, "?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if !resp.Success || strings.TrimSpace(resp.BestMove) == "" {
		return nil, errors.New("engine returned no best move")
	}
	return &Hint{BestMove: resp.BestMove, Evaluation: resp.Evaluation, Mate: resp.Mate}, nil
}

func (c *Client) getJSON(ctx context.Context, pathAndQuery string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + pathAndQuery)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("hint request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("hint api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !shouldRetryStatus(status) {
				return lastErr
			}
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode hint response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

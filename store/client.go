package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"todosync/model"
)

// Client implements Remote against the todod sync server: todos are
// saved with HTTP PUT and the change feed arrives over a websocket.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  logger,
	}
}

// Save stores the todo via PUT /todos/{id} and returns the todo the
// server actually stored.
func (c *Client) Save(ctx context.Context, todo model.Todo) (model.Todo, error) {
	if todo.ID == "" {
		return model.Todo{}, fmt.Errorf("save: empty todo id")
	}
	body, err := json.Marshal(todo)
	if err != nil {
		return model.Todo{}, fmt.Errorf("encode todo: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/todos/"+url.PathEscape(todo.ID), bytes.NewReader(body))
	if err != nil {
		return model.Todo{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Todo{}, fmt.Errorf("save todo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Todo{}, fmt.Errorf("save todo: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var saved model.Todo
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		return model.Todo{}, fmt.Errorf("decode saved todo: %w", err)
	}
	return saved, nil
}

// Subscribe dials the websocket change feed. The returned channel
// closes when the feed disconnects for any reason; the caller decides
// whether to resubscribe.
func (c *Client) Subscribe(ctx context.Context) (<-chan Change, error) {
	feedURL, err := c.feedURL()
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial change feed: %w", err)
	}

	ch := make(chan Change)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(ch)
		defer close(done)
		defer conn.Close()
		for {
			var change Change
			if err := conn.ReadJSON(&change); err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("change feed closed", "err", err)
				}
				return
			}
			select {
			case ch <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (c *Client) feedURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/todos/feed"
	return u.String(), nil
}

// Backoff computes reconnect delays: exponential growth from base,
// capped at max, with up to base of random jitter so clients that lost
// the same server do not reconnect in lockstep.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the delay before the given attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}
	delay := base
	for i := 0; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	return delay + jitter(base)
}

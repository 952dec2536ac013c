// Package riven is the HTTP client for the Riven media backend. Every
// request passes through the shared rate-limit registry under the
// "riven" gate name before it goes on the wire.
package riven

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	trcerrors "github.com/trc-project/trc/internal/errors"
	"github.com/trc-project/trc/internal/logging"
	"github.com/trc-project/trc/internal/ratelimit"
)

// GateName is the rate-limit gate this client acquires before every call.
const GateName = "riven"

// listLimit caps how many items one scan pulls from the backend.
const listLimit = 500

// Client talks to the Riven API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	gates   *ratelimit.Registry
	logger  *logging.Logger
}

// NewClient creates a Riven client. The registry is shared with the
// rest of the daemon; a nil logger is replaced by a no-op logger.
func NewClient(baseURL, apiKey string, gates *ratelimit.Registry, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		gates:   gates,
		logger:  logger.WithComponent("riven"),
	}
}

// ListItems returns items in any of the given states.
func (c *Client) ListItems(ctx context.Context, states ...string) ([]Item, error) {
	q := url.Values{}
	q.Set("states", strings.Join(states, ","))
	q.Set("limit", strconv.Itoa(listLimit))

	var resp itemsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/items", q, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// RetryItem asks Riven to re-run acquisition for the item: the item is
// reset and sent back through scraping and downloading.
func (c *Client) RetryItem(ctx context.Context, id int64) error {
	q := url.Values{}
	q.Set("ids", strconv.FormatInt(id, 10))
	return c.do(ctx, http.MethodPost, "/api/v1/items/retry", q, nil)
}

// RemoveItem deletes the item from Riven entirely.
func (c *Client) RemoveItem(ctx context.Context, id int64) error {
	q := url.Values{}
	q.Set("ids", strconv.FormatInt(id, 10))
	return c.do(ctx, http.MethodDelete, "/api/v1/items/remove", q, nil)
}

// AddItem requests content by IMDb id. Paired with RemoveItem this
// re-requests an item from scratch.
func (c *Client) AddItem(ctx context.Context, imdbID string) error {
	q := url.Values{}
	q.Set("imdb_ids", imdbID)
	return c.do(ctx, http.MethodPost, "/api/v1/items/add", q, nil)
}

// ResetItem clears the item's state without removing it, so the next
// Riven pass starts from scratch.
func (c *Client) ResetItem(ctx context.Context, id int64) error {
	q := url.Values{}
	q.Set("ids", strconv.FormatInt(id, 10))
	return c.do(ctx, http.MethodPost, "/api/v1/items/reset", q, nil)
}

// ScrapeItem returns the scraped torrent candidates for the item,
// best-ranked first.
func (c *Client) ScrapeItem(ctx context.Context, id int64) ([]Stream, error) {
	var streams []Stream
	path := fmt.Sprintf("/api/v1/scrape/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, &streams); err != nil {
		return nil, err
	}
	return streams, nil
}

// Close releases the client's idle connections. Safe to call on every
// exit path.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do acquires the gate, issues the request and decodes the response
// into out (when out is non-nil). Non-2xx responses become APIErrors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	if err := c.gates.Acquire(ctx, GateName); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return trcerrors.WrapTransport("riven", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return trcerrors.NewAPIError("riven", path, resp.StatusCode, bodySnippet(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// bodySnippet reads a short prefix of the response body for error
// messages. The body may be HTML or truncated; it is only for logs.
func bodySnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}

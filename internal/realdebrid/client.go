// Package realdebrid is the HTTP client for the Real-Debrid REST API.
// Every request passes through the shared rate-limit registry under
// the "realdebrid" gate name before it goes on the wire.
package realdebrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	trcerrors "github.com/trc-project/trc/internal/errors"
	"github.com/trc-project/trc/internal/logging"
	"github.com/trc-project/trc/internal/ratelimit"
)

// GateName is the rate-limit gate this client acquires before every call.
const GateName = "realdebrid"

// Torrent statuses returned by the Real-Debrid API.
const (
	StatusWaitingFiles = "waiting_files_selection"
	StatusQueued       = "queued"
	StatusDownloading  = "downloading"
	StatusDownloaded   = "downloaded"
	StatusError        = "error"
	StatusVirus        = "virus"
	StatusDead         = "dead"
	StatusMagnetError  = "magnet_error"
)

// Torrent is the state of a torrent on Real-Debrid.
type Torrent struct {
	ID       string   `json:"id"`
	Filename string   `json:"filename"`
	Status   string   `json:"status"`
	Progress float64  `json:"progress"` // 0-100
	Links    []string `json:"links"`
}

// Failed reports whether the torrent is in a state it will never
// recover from.
func (t *Torrent) Failed() bool {
	switch t.Status {
	case StatusError, StatusVirus, StatusDead, StatusMagnetError:
		return true
	}
	return false
}

// activeCountResponse is the envelope of /torrents/activeCount.
type activeCountResponse struct {
	Nb    int `json:"nb"`
	Limit int `json:"limit"`
}

// addMagnetResponse is the envelope of /torrents/addMagnet.
type addMagnetResponse struct {
	ID string `json:"id"`
}

// Client talks to the Real-Debrid API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	gates   *ratelimit.Registry
	logger  *logging.Logger
}

// NewClient creates a Real-Debrid client. The registry is shared with
// the rest of the daemon; a nil logger is replaced by a no-op logger.
func NewClient(baseURL, apiKey string, gates *ratelimit.Registry, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		gates:   gates,
		logger:  logger.WithComponent("realdebrid"),
	}
}

// AddMagnet submits a magnet link and returns the new torrent's ID.
func (c *Client) AddMagnet(ctx context.Context, magnet string) (string, error) {
	form := url.Values{}
	form.Set("magnet", magnet)

	var resp addMagnetResponse
	if err := c.do(ctx, http.MethodPost, "/torrents/addMagnet", form, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// TorrentInfo returns the current state of a torrent.
func (c *Client) TorrentInfo(ctx context.Context, id string) (*Torrent, error) {
	var t Torrent
	if err := c.do(ctx, http.MethodGet, "/torrents/info/"+id, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SelectFiles chooses which files of the torrent to download. files is
// a comma-separated list of file IDs, or "all".
func (c *Client) SelectFiles(ctx context.Context, id, files string) error {
	form := url.Values{}
	form.Set("files", files)
	return c.do(ctx, http.MethodPost, "/torrents/selectFiles/"+id, form, nil)
}

// DeleteTorrent removes a torrent from the account.
func (c *Client) DeleteTorrent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/torrents/delete/"+id, nil, nil)
}

// ActiveCount returns the number of torrents currently downloading on
// the account.
func (c *Client) ActiveCount(ctx context.Context) (int, error) {
	var resp activeCountResponse
	if err := c.do(ctx, http.MethodGet, "/torrents/activeCount", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Nb, nil
}

// Close releases the client's idle connections. Safe to call on every
// exit path.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do acquires the gate, issues the request (form-encoded for POST) and
// decodes the response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	if err := c.gates.Acquire(ctx, GateName); err != nil {
		return err
	}

	var body io.Reader
	if method == http.MethodPost && len(form) > 0 {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.Debug("request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return trcerrors.WrapTransport("realdebrid", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return trcerrors.NewAPIError("realdebrid", path, resp.StatusCode, bodySnippet(resp.Body))
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
// messages.
func bodySnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}

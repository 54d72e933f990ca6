// Package source loads the raw board document (tickets and users) from the
// remote endpoint or from a local file.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/joescharf/kanban/internal/models"
)

// DefaultURL is the endpoint serving the board document.
const DefaultURL = "https://api.quicksell.co/v1/internal/frontend-assignment"

// Failure classes. Every error returned by a Fetcher wraps exactly one.
var (
	ErrDataShape = errors.New("unexpected board data shape")
	ErrNetwork   = errors.New("board fetch failed")
)

// maxBodySize bounds the response body; the board is assumed to hold at
// most a few thousand tickets.
const maxBodySize = 32 << 20

// Payload is the decoded board document.
type Payload struct {
	Tickets []models.Ticket `json:"tickets"`
	Users   []models.User   `json:"users"`
}

// Fetcher loads a board document.
type Fetcher interface {
	Fetch(ctx context.Context) (*Payload, error)
}

// Client fetches the board document over HTTP.
type Client struct {
	URL  string
	HTTP *http.Client
	// MaxBody caps the response size; zero means maxBodySize.
	MaxBody int64
}

// NewClient returns a Client for url. A zero timeout means no client-side
// timeout beyond the caller's context.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		URL:  url,
		HTTP: &http.Client{Timeout: timeout},
	}
}

// Fetch issues a single GET. There is no retry.
func (c *Client) Fetch(ctx context.Context) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrNetwork, c.URL, resp.Status)
	}

	limit := c.MaxBody
	if limit <= 0 {
		limit = maxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrDataShape, limit)
	}
	return Decode(body)
}

// FileFetcher reads the board document from a local JSON file.
type FileFetcher struct {
	Path string
}

func (f FileFetcher) Fetch(ctx context.Context) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	body, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return Decode(body)
}

// Decode checks that body is a JSON object with both a "tickets" and a
// "users" array and decodes it.
func Decode(body []byte) (*Payload, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrDataShape)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrDataShape)
	}

	var missing []string
	for _, key := range []string{"tickets", "users"} {
		if !root.Get(key).IsArray() {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s array", ErrDataShape, strings.Join(missing, " and "))
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataShape, err)
	}
	return &p, nil
}

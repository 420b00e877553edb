// Package metadata looks up basic video details from the public oEmbed endpoint.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the oEmbed endpoint queried for video details.
	DefaultBaseURL = "https://www.youtube.com/oembed"
	// DefaultTimeout bounds a single lookup.
	DefaultTimeout = 10 * time.Second

	watchURLPrefix = "https://www.youtube.com/watch?v="
	maxBodyBytes   = 1 << 20
)

// Client queries an oEmbed endpoint.
type Client struct {
	BaseURL   string
	HTTP      *http.Client
	Timeout   time.Duration
	UserAgent string
}

// Lookup returns the decoded oEmbed document for videoID. Any non-200 answer
// yields a nil map together with an error describing it.
func (c *Client) Lookup(ctx context.Context, videoID string) (map[string]any, error) {
	if c == nil {
		return nil, fmt.Errorf("metadata client is not configured")
	}
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, fmt.Errorf("video id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.lookupURL(videoID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oembed request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oembed returned HTTP %d", resp.StatusCode)
	}

	var info map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode oembed response: %w", err)
	}
	return info, nil
}

func (c *Client) lookupURL(videoID string) string {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	query := url.Values{}
	query.Set("url", watchURLPrefix+videoID)
	query.Set("format", "json")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + query.Encode()
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

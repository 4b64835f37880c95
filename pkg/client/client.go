// Package client talks to the photoblog JSON API.
package client

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

	"go.opentelemetry.io/otel/attribute"

	"github.com/photoblog/photoblog/pkg/telemetry"
)

const apiPrefix = "/api/v1.0"

// Post is one entry of a posts listing
type Post struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	Body         string    `json:"body"`
	BodyHTML     string    `json:"body_html"`
	Timestamp    time.Time `json:"timestamp"`
	AuthorURL    string    `json:"author_url"`
	CommentsURL  string    `json:"comments_url"`
	CommentCount int64     `json:"comment_count"`
	// ImgURL is nil for posts without an image.
	ImgURL *string `json:"img_url"`
}

// PostPage is one page of posts, newest first
type PostPage struct {
	Posts []Post  `json:"posts"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
	Count int64   `json:"count"`
}

// Error is a non-2xx answer of the API
type Error struct {
	Status  int
	Kind    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Kind)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Kind, e.Message)
}

// Client issues requests with HTTP Basic credentials. An empty user makes
// anonymous requests, an empty password sends user as an auth token.
type Client struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a client of the server at baseURL, e.g. http://localhost:5000
func New(baseURL, user, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Posts fetches page (1-based) of the public posts listing.
func (c *Client) Posts(ctx context.Context, page int) (*PostPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{"page": {strconv.Itoa(page)}}
	var out PostPage
	if err := c.get(ctx, "/posts/?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Token exchanges the client's credentials for an auth token.
func (c *Client) Token(ctx context.Context) (string, time.Duration, error) {
	var out struct {
		Token      string `json:"token"`
		Expiration int64  `json:"expiration"`
	}
	if err := c.get(ctx, "/token", &out); err != nil {
		return "", 0, err
	}
	return out.Token, time.Duration(out.Expiration) * time.Second, nil
}

// WithToken returns a client authenticating with token instead of a
// password.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.user = token
	cp.password = ""
	return &cp
}

func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "client.get")
	defer span.End()
	span.SetAttributes(attribute.String("http.path", path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPrefix+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Kind == "" {
			apiErr.Kind = strings.ToLower(http.StatusText(resp.StatusCode))
		}
		return apiErr
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

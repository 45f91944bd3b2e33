// Package wordpress is a minimal client for the WordPress REST API (wp/v2)
// covering the post and media calls the publisher makes.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/novelpress/internal/apperr"
)

const apiPrefix = "/wp-json/wp/v2"

// Client talks to one WordPress site using HTTP Basic auth with an
// application password.
type Client struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
}

// NewClient creates a client for siteURL. A nil httpClient gets a default
// client with a 60 second timeout.
func NewClient(siteURL, user, password string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(siteURL, "/") + apiPrefix,
		user:     user,
		password: password,
		http:     httpClient,
	}
}

// FindPostBySlug returns the published or draft post with slug, or nil when none exists.
func (c *Client) FindPostBySlug(ctx context.Context, slug string) (*Post, error) {
	q := url.Values{}
	q.Set("slug", slug)
	q.Set("status", StatusPublish+","+StatusDraft)
	var posts []Post
	if err := c.do(ctx, http.MethodGet, "/posts", q, nil, "", nil, &posts); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

// CreatePost creates a new post.
func (c *Client) CreatePost(ctx context.Context, in PostInput) (*Post, error) {
	var p Post
	if err := c.doJSON(ctx, http.MethodPost, "/posts", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePost replaces the writable fields of post id.
func (c *Client) UpdatePost(ctx context.Context, id int, in PostInput) (*Post, error) {
	var p Post
	if err := c.doJSON(ctx, http.MethodPut, "/posts/"+strconv.Itoa(id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SearchMedia lists media items matching term.
func (c *Client) SearchMedia(ctx context.Context, term string) ([]Media, error) {
	q := url.Values{}
	q.Set("search", term)
	var items []Media
	if err := c.do(ctx, http.MethodGet, "/media", q, nil, "", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// UploadMedia uploads raw file bytes as a new media item.
func (c *Client) UploadMedia(ctx context.Context, filename, contentType string, data []byte) (*Media, error) {
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(filename, `"`, "")),
	}
	var m Media
	if err := c.do(ctx, http.MethodPost, "/media", nil, bytes.NewReader(data), contentType, headers, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMedia sets the alt text of media item id.
func (c *Client) UpdateMedia(ctx context.Context, id int, altText string) error {
	return c.doJSON(ctx, http.MethodPut, "/media/"+strconv.Itoa(id), map[string]string{"alt_text": altText}, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return apperr.NewNetworkError("marshal request", err)
	}
	return c.do(ctx, method, path, nil, bytes.NewReader(body), "application/json", nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string, headers map[string]string, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return apperr.NewNetworkError("build request", err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.NewNetworkError(method+" "+path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.NewNetworkError("read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.NewAPIError(resp.StatusCode, errorMessage(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.NewNetworkError("unmarshal response", err)
	}
	return nil
}

// errorMessage extracts the "message" of a WordPress error body, falling
// back to the raw body.
func errorMessage(data []byte) string {
	var e struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &e) == nil && e.Message != "" {
		if e.Code != "" {
			return e.Code + ": " + e.Message
		}
		return e.Message
	}
	return strings.TrimSpace(string(data))
}

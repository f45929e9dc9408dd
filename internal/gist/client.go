// Package gist stores snippets in a GitHub Gist: one file per snippet plus
// an index.md manifest carrying descriptions, languages and tags.
package gist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

const (
	acceptHeader = "application/vnd.github+json"
	userAgent    = "snip"
	maxErrorBody = 512
)

// ErrGistNotFound is returned when the gist id does not exist.
var ErrGistNotFound = errors.New("gist not found")

// Gist is the subset of the GitHub gist resource snip uses.
type Gist struct {
	ID          string           `json:"id"`
	HTMLURL     string           `json:"html_url"`
	Description string           `json:"description"`
	Public      bool             `json:"public"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Files       map[string]*File `json:"files"`
}

// File is one file of a gist. Content is empty and Truncated set when the
// file is too large to be inlined in the gist response.
type File struct {
	Filename  string `json:"filename"`
	Language  string `json:"language"`
	RawURL    string `json:"raw_url"`
	Size      int    `json:"size"`
	Truncated bool   `json:"truncated"`
	Content   string `json:"content"`
}

// FileContent is the body of a file in a create or update request. A nil
// *FileContent in an update deletes the file.
type FileContent struct {
	Content string `json:"content"`
}

type createRequest struct {
	Description string                  `json:"description"`
	Public      bool                    `json:"public"`
	Files       map[string]*FileContent `json:"files"`
}

type updateRequest struct {
	Description string                  `json:"description,omitempty"`
	Files       map[string]*FileContent `json:"files"`
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// Client talks to the GitHub gist API.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient returns a client authenticating every request with token.
// An empty token makes anonymous requests, which can read public gists.
// An empty baseURL selects DefaultAPIURL.
func NewClient(ctx context.Context, token, baseURL string) *Client {
	if token == "" {
		return NewClientWithHTTP(oauth2.NewClient(ctx, nil), baseURL)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return NewClientWithHTTP(oauth2.NewClient(ctx, ts), baseURL)
}

// NewClientWithHTTP returns a client using hc as transport.
func NewClientWithHTTP(hc *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

// Get fetches a gist. Truncated files are completed from their raw URL.
func (c *Client) Get(ctx context.Context, id string) (*Gist, error) {
	var g Gist
	if err := c.do(ctx, http.MethodGet, "/gists/"+id, nil, &g); err != nil {
		return nil, err
	}
	for name, f := range g.Files {
		if !f.Truncated {
			continue
		}
		content, err := c.fetchRaw(ctx, f.RawURL)
		if err != nil {
			return nil, fmt.Errorf("fetching truncated file %s: %w", name, err)
		}
		f.Content = content
		f.Truncated = false
	}
	return &g, nil
}

// Create makes a new gist holding files.
func (c *Client) Create(ctx context.Context, description string, public bool, files map[string]*FileContent) (*Gist, error) {
	var g Gist
	req := createRequest{Description: description, Public: public, Files: files}
	if err := c.do(ctx, http.MethodPost, "/gists", req, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Update patches files of an existing gist. Files not named are kept.
func (c *Client) Update(ctx context.Context, id string, files map[string]*FileContent) (*Gist, error) {
	var g Gist
	if err := c.do(ctx, http.MethodPatch, "/gists/"+id, updateRequest{Files: files}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &StatusError{Method: method, URL: url, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", ErrGistNotFound, serr)
		}
		return serr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, url, err)
	}
	return nil
}

func (c *Client) fetchRaw(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Method: http.MethodGet, URL: url, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	return string(data), nil
}

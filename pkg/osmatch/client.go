// Package osmatch provides a client for the Ordnance Survey Places match endpoint.
package osmatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the OS Places API match endpoint.
const DefaultBaseURL = "https://api.os.uk/search/match/v1/match"

// Client matches a free-text address query against the OS Places dataset.
type Client interface {
	// Match issues a single request for query using key as the API credential.
	Match(ctx context.Context, query, key string) (*Response, error)
}

// Response is one parsed match response.
type Response struct {
	// Raw is the response body text with surrounding whitespace trimmed.
	Raw string
	// Body is the decoded JSON object. Numbers are json.Number.
	Body map[string]any
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := "osmatch: service returned status " + strconv.Itoa(e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the match endpoint.
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithMaxResults sets the maxresults parameter. Values below 1 are ignored.
func WithMaxResults(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithTimeout sets a request timeout on the default HTTP client. Zero keeps
// the transport default (no timeout).
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		c.timeout = d
	}
}

type client struct {
	httpClient *http.Client
	baseURL    string
	maxResults int
	timeout    time.Duration
}

// NewClient creates a new match Client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    DefaultBaseURL,
		maxResults: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Match implements Client. It never retries.
func (c *client) Match(ctx context.Context, query, key string) (*Response, error) {
	if key == "" {
		return nil, eris.New("osmatch: api key not configured")
	}

	params := url.Values{
		"maxresults": {strconv.Itoa(c.maxResults)},
		"query":      {query},
		"key":        {key},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "osmatch: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request URL carries the key; keep it out of the error text.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, eris.Wrap(err, "osmatch: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "osmatch: read body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	return ParseResponse(body)
}

// ParseResponse decodes a match response body. The body must be a JSON object.
func ParseResponse(body []byte) (*Response, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, eris.Wrap(err, "osmatch: parse response")
	}
	if m == nil {
		return nil, eris.New("osmatch: parse response: body is not a JSON object")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, eris.New("osmatch: parse response: unexpected data after JSON object")
	}

	return &Response{Raw: string(bytes.TrimSpace(body)), Body: m}, nil
}

// Package agent talks to the tech-support agent server.
//
// The server accepts the conversation as a JSON array of turns on
// POST /question/stream and answers with a raw UTF-8 byte stream. There is
// no framing: the reply is whatever the body carries, followed by a
// fixed end-of-reply sentinel (see Terminator).
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Author values used on the wire.
const (
	ByUser  = "user"
	ByAgent = "agent"
)

// Turn is one entry of the request body.
type Turn struct {
	By      string `json:"by"`
	Message string `json:"message"`
}

// ServerInfo is returned by the server root endpoint.
type ServerInfo struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// ErrNoBody is returned when a successful response carries no body to stream.
var ErrNoBody = errors.New("response has no body")

// StatusError reports a non-2xx answer from the server.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent returned %s", e.Status)
}

type Client struct {
	httpClient  *http.Client
	baseURL     string
	streamURL   string
	pingTimeout time.Duration
}

const defaultPingTimeout = 5 * time.Second

type Options struct {
	BaseURL        string
	StreamPath     string
	ConnectTimeout time.Duration
	// HTTPClient replaces the default client (tests).
	HTTPClient *http.Client
}

func NewClient(opts Options) (*Client, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	streamPath := opts.StreamPath
	if streamPath == "" {
		streamPath = "/question/stream"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid agent URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid agent URL %q: scheme must be http or https", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(opts.ConnectTimeout)
	}

	pingTimeout := opts.ConnectTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}

	base := strings.TrimRight(parsedURL.String(), "/")
	return &Client{
		httpClient:  httpClient,
		baseURL:     base,
		streamURL:   base + "/" + strings.TrimLeft(streamPath, "/"),
		pingTimeout: pingTimeout,
	}, nil
}

// newHTTPClient bounds connection setup only; the body of a streamed reply
// may legitimately take minutes, so there is no overall client timeout.
func newHTTPClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		return &http.Client{}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	return &http.Client{Transport: transport}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) StreamURL() string {
	return c.streamURL
}

// OpenStream posts the conversation and returns the reply body on success.
// The caller owns the body and must close it. Cancelling ctx aborts both the
// request and any read in progress on the body.
func (c *Client) OpenStream(ctx context.Context, turns []Turn) (io.ReadCloser, error) {
	if turns == nil {
		turns = []Turn{}
	}
	payload, err := json.Marshal(turns)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.streamURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach agent: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drainAndClose(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		drainAndClose(resp.Body)
		return nil, ErrNoBody
	}

	return resp.Body, nil
}

// Ping calls the server root endpoint. The whole call is bounded by the
// connect timeout.
func (c *Client) Ping(ctx context.Context) (*ServerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach agent: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var info ServerInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode server info: %w", err)
	}
	return &info, nil
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	_ = body.Close()
}

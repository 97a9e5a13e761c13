package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/filedock/filedock/internal/config"
	"github.com/filedock/filedock/internal/constants"
	"github.com/filedock/filedock/internal/events"
	"github.com/filedock/filedock/internal/http"
	"github.com/filedock/filedock/internal/logging"
	"github.com/filedock/filedock/internal/session"
)

// Reasons attached to a transition back to the login view.
const (
	ReasonNotAuthenticated = "not_authenticated"
	ReasonSessionExpired   = "session_expired"
	ReasonLogout           = "logout"
	ReasonLogin            = "login"
)

// Client sends requests to the file server on behalf of the logged-in user.
//
// Every authenticated call makes exactly one attempt. A missing token or a
// 401 response clears the session and publishes a ViewChanged{login} event
// before the error is returned to the caller.
type Client struct {
	httpClient  *nethttp.Client
	baseURL     string
	session     session.Store
	eventBus    *events.EventBus
	logger      *logging.Logger
	onLoggedOut func(reason string)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the proxy-aware default HTTP client.
func WithHTTPClient(hc *nethttp.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEventBus sets the bus that receives view transitions.
func WithEventBus(bus *events.EventBus) Option {
	return func(c *Client) { c.eventBus = bus }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithLoggedOutHook registers a callback run whenever the session is lost.
func WithLoggedOutHook(fn func(reason string)) Option {
	return func(c *Client) { c.onLoggedOut = fn }
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, store session.Store, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimSuffix(cfg.ServerURL, "/"),
		session: store,
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		httpClient, err := http.ConfigureHTTPClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
		}
		c.httpClient = httpClient
	}

	return c, nil
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *nethttp.Client {
	return c.httpClient
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL resolves a server path.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

// FileURL returns the public link for a stored file.
func (c *Client) FileURL(uniqueName string) string {
	return fileURL(c.baseURL, uniqueName)
}

func fileURL(baseURL, uniqueName string) string {
	return baseURL + constants.PathFiles + url.PathEscape(uniqueName)
}

// Authenticated reports whether a session token is present.
func (c *Client) Authenticated() bool {
	_, ok := c.session.Token()
	return ok
}

// Authorize attaches the bearer token to req.
// It is shared by Do and by callers that build their own requests, such as
// streaming uploads.
func (c *Client) Authorize(req *nethttp.Request) error {
	token, ok := c.session.Token()
	if !ok {
		c.loggedOut(ReasonNotAuthenticated)
		return ErrNotAuthenticated
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// CheckAuthorized applies the 401 rule to a response: the body is drained
// and closed, the session is cleared and ErrSessionExpired is returned.
func (c *Client) CheckAuthorized(resp *nethttp.Response) error {
	if resp.StatusCode != nethttp.StatusUnauthorized {
		return nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := c.session.ClearToken(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear expired session")
	}
	c.loggedOut(ReasonSessionExpired)
	return ErrSessionExpired
}

// Do sends one authenticated request.
//
// Caller headers are kept; the Authorization header is always set from the
// session. Non-2xx statuses other than 401 are returned as-is for the caller
// to interpret.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, header nethttp.Header) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	if err := c.Authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}

	if err := c.CheckAuthorized(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// doJSON sends an authenticated JSON request.
func (c *Client) doJSON(ctx context.Context, method, path string, in interface{}) (*nethttp.Response, error) {
	header := nethttp.Header{}
	header.Set("Accept", "application/json")

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
		header.Set("Content-Type", "application/json")
	}

	return c.Do(ctx, method, path, body, header)
}

func (c *Client) loggedOut(reason string) {
	c.logger.Debug().Str("reason", reason).Msg("switching to login view")
	c.eventBus.Publish(events.NewViewChangedEvent(events.ViewLogin, reason))
	if c.onLoggedOut != nil {
		c.onLoggedOut(reason)
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// ReadErrorBody returns a trimmed, bounded copy of an error response body,
// or the status text when the body is empty.
func ReadErrorBody(resp *nethttp.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}
	return nethttp.StatusText(resp.StatusCode)
}

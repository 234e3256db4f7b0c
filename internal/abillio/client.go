// the abillio package signs and sends requests to the abillio freelancer billing API.
//
// Every request carries three headers: the API key, the base64 encoded JSON envelope
// (the caller's payload plus the request path and a nonce) and a hex HMAC-SHA256 of the
// encoded envelope keyed by the API secret. The envelope is only sent in the headers, never
// as a request body, and it is serialized exactly once so the signed bytes are the sent bytes.
//
// Errors are returned as *Error (see errors.go) so callers can tell configuration, transport,
// upstream and decode failures apart and show the UserError() message to end users.
package abillio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout applies when no timeout is configured
const DefaultTimeout = 30 * time.Second

// Requester is implemented by Client. Handlers depend on this so tests can supply a fake.
type Requester interface {
	Request(ctx context.Context, endpoint string, payload any, method string, query map[string]string) (json.RawMessage, error)
}

// Client is safe for concurrent use. The only state shared between calls is the
// read-only credentials and the nonce source.
type Client struct {
	credentials Credentials
	httpClient  *http.Client
	logger      *slog.Logger
	nonces      *NonceSource
}

type Option func(*Client)

// WithHTTPClient replaces the default http client (and its timeout)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the timeout on the client's own copy of the http client, so a client
// passed to WithHTTPClient is never modified. Options apply in order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the time source used for nonces
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.nonces = NewNonceSource(now)
	}
}

// NewClient returns a ConfigurationError if the key or secret is missing.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	creds.BaseURL = strings.TrimRight(creds.BaseURL, "/")

	c := &Client{
		credentials: creds,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
		nonces: NewNonceSource(time.Now),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL is the upstream URL requests are sent to
func (c *Client) BaseURL() string {
	return c.credentials.BaseURL
}

// Request sends a signed request for endpoint (e.g. "services" or "freelancers/123") and
// returns the upstream JSON body verbatim.
//
// method must be GET or POST; the signing is the same for both and no request body is sent.
// query is appended to the URL and is not covered by the signature.
func (c *Client) Request(ctx context.Context, endpoint string, payload any, method string, query map[string]string) (json.RawMessage, error) {
	// a zero Client has no credentials - fail before doing anything else
	if err := c.credentials.validate(); err != nil {
		return nil, err
	}

	if method != http.MethodGet && method != http.MethodPost {
		return nil, NewRequestError(fmt.Errorf("unsupported method %q", method), "building request for "+endpoint)
	}

	env, err := BuildEnvelope(endpoint, payload, c.nonces.Next())
	if err != nil {
		return nil, NewRequestError(err, "building envelope for "+endpoint)
	}

	headers := NewSignedHeaders(c.credentials, env)

	url := c.credentials.BaseURL + env.Path
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, NewRequestError(err, "creating request for "+endpoint)
	}
	headers.Apply(req.Header)
	req.Header.Set("Accept", "application/json")

	if len(query) > 0 {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	c.logger.Debug("abillio request",
		slog.String("method", method),
		slog.String("url", url),
		slog.Any("query", query),
	)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewTransportError(err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, NewTransportError(fmt.Errorf("reading response body: %w", err))
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, NewUpstreamError(res.StatusCode, body)
	}

	if !json.Valid(body) {
		return nil, NewDecodeError(fmt.Errorf("response from %s is not valid JSON", env.Path), res.StatusCode, body)
	}

	return json.RawMessage(body), nil
}

// Get sends a signed GET and decodes the response into T
func Get[T any](ctx context.Context, r Requester, endpoint string, query map[string]string) (*T, error) {
	return do[T](ctx, r, endpoint, nil, http.MethodGet, query)
}

// Post sends a signed POST and decodes the response into T
func Post[T any](ctx context.Context, r Requester, endpoint string, payload any, query map[string]string) (*T, error) {
	return do[T](ctx, r, endpoint, payload, http.MethodPost, query)
}

func do[T any](ctx context.Context, r Requester, endpoint string, payload any, method string, query map[string]string) (*T, error) {
	raw, err := r.Request(ctx, endpoint, payload, method, query)
	if err != nil {
		return nil, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, NewDecodeError(fmt.Errorf("decoding %s response: %w", endpoint, err), http.StatusOK, raw)
	}
	return &v, nil
}

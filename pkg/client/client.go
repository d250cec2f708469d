package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IdempotencyKeyHeader carries a key that stays the same across retries of
// one logical write.
const IdempotencyKeyHeader = "Idempotency-Key"

// Client performs authenticated JSON calls against one base URL, retrying
// transient failures. It is safe for concurrent use.
type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	log     logrus.FieldLogger
	metrics *Metrics
	limiter *rate.Limiter
	backoff Backoff
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is set to
// the configured per-attempt timeout when unset.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTransport keeps the default HTTP client but swaps its transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSleep replaces the function used to wait between attempts.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func WithJitter(fn func(time.Duration) time.Duration) Option {
	return func(c *Client) { c.backoff.Jitter = fn }
}

// WithRateLimiter overrides the limiter derived from Config.RateLimit.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New validates cfg and builds a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.Service == "" {
		cfg.Service = base.Host
	}

	c := &Client{
		cfg:     cfg,
		base:    base,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()},
		log:     logrus.StandardLogger(),
		backoff: Backoff{Base: cfg.BackoffBase, Max: cfg.BackoffMax},
		sleep:   sleepContext,
		now:     time.Now,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.http.Timeout == 0 {
		c.http.Timeout = cfg.Timeout
	}
	c.log = c.log.WithField("service", cfg.Service)

	return c, nil
}

// Config returns the settings the client was built with.
func (c *Client) Config() Config {
	return c.cfg
}

// Close releases pooled connections. The client must not be used afterwards.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
	c.log.Debug("http client closed")
}

type requestOptions struct {
	query  url.Values
	header http.Header
}

// RequestOption adjusts a single call
type RequestOption func(*requestOptions)

func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		for k, vs := range q {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// WithHeader sets a header, overriding the client defaults.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) { o.header.Set(key, value) }
}

func (c *Client) Get(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// HealthCheck fetches /health, or /health/{service} when service is set, and
// returns the decoded payload as is.
func (c *Client) HealthCheck(ctx context.Context, service string) (map[string]interface{}, error) {
	path := "/health"
	if service != "" {
		path += "/" + url.PathEscape(service)
	}
	result := map[string]interface{}{}
	if err := c.Get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Do sends one logical request. body is encoded as JSON when not nil and the
// response is decoded into out when out is not nil and the body is not empty.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}, opts ...RequestOption) error {
	ro := requestOptions{query: url.Values{}, header: http.Header{}}
	for _, opt := range opts {
		opt(&ro)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s body: %w", method, path, err)
		}
	}
	if method != http.MethodGet && method != http.MethodHead && ro.header.Get(IdempotencyKeyHeader) == "" {
		ro.header.Set(IdempotencyKeyHeader, uuid.NewString())
	}

	log := c.log.WithFields(logrus.Fields{"method": method, "path": path})
	log.Debug("http request")

	var last *APIError
	attempts := c.cfg.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if last != nil {
			delay := c.backoff.Delay(attempt-1, last.RetryAfter)
			log.WithFields(logrus.Fields{
				"attempt":      attempt,
				"max_attempts": attempts,
				"delay":        delay,
				"reason":       Kind(last),
			}).Warn("retrying request")
			c.metrics.retry(c.cfg.Service, Kind(last))

			if err := c.sleep(ctx, delay); err != nil {
				return fmt.Errorf("%s %s: %w", method, path, err)
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s %s: rate limiter: %w", method, path, err)
			}
		}

		data, apiErr := c.attempt(ctx, method, path, payload, &ro)
		if apiErr == nil {
			return c.decode(method, path, data, out)
		}
		apiErr.Attempts = attempt

		// Cancellation by the caller ends the call without further attempts
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctx.Err())
		}
		if !apiErr.Retryable() {
			log.WithFields(logrus.Fields{"status": apiErr.StatusCode, "kind": Kind(apiErr)}).Error(apiErr.Message)
			return apiErr
		}
		last = apiErr
	}

	log.WithFields(logrus.Fields{"status": last.StatusCode, "kind": Kind(last), "attempts": attempts}).Error("retries exhausted")
	return last
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, ro *requestOptions) ([]byte, *APIError) {
	apiErr := &APIError{Service: c.cfg.Service, Method: method, Path: path}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path, ro.query), reader)
	if err != nil {
		apiErr.Kind, apiErr.Err = ErrRequest, err
		return nil, apiErr
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	for k, vs := range ro.header {
		req.Header[k] = vs
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(c.cfg.Service, method, "error", c.now().Sub(start))
		apiErr.Kind, apiErr.Err = transportError(err), err
		return nil, apiErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.observe(c.cfg.Service, method, strconv.Itoa(resp.StatusCode), c.now().Sub(start))
	if err != nil {
		apiErr.Kind, apiErr.Err, apiErr.StatusCode = transportError(err), err, resp.StatusCode
		return nil, apiErr
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	apiErr.Kind = statusKind(resp.StatusCode)
	apiErr.StatusCode = resp.StatusCode
	apiErr.Body = data
	apiErr.Message = errorMessage(resp.StatusCode, data)
	if apiErr.Kind == ErrRateLimited {
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
	}
	if apiErr.Kind == ErrAuth && c.cfg.Token == "" {
		apiErr.Message += " (no API token configured: set MATRIX_HUB_TOKEN, MATRIX_TOKEN or API_TOKEN)"
	}
	return nil, apiErr
}

func (c *Client) decode(method, path string, data []byte, out interface{}) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{
			Kind:       ErrDecode,
			Service:    c.cfg.Service,
			Method:     method,
			Path:       path,
			StatusCode: http.StatusOK,
			Body:       data,
			Err:        err,
		}
	}
	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

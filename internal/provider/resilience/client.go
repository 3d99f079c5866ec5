package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without contacting the upstream while its
// breaker is open or half-open and saturated.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// NoRetries disables retrying when assigned to ClientConfig.MaxRetries.
const NoRetries = ^uint64(0)

const (
	defaultTimeout         = 10 * time.Second
	defaultMaxRetries      = 3
	defaultInitialInterval = 100 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
)

// ClientConfig configures a Client. Zero values take the defaults shown.
type ClientConfig struct {
	// Name keys the breaker and the registry entry ("osrm", "police", ...).
	Name string

	// Timeout bounds a single attempt. Default 10s.
	Timeout time.Duration

	// MaxRetries after the first attempt. Default 3; NoRetries for none.
	MaxRetries uint64

	// Backoff between attempts starts at InitialInterval (100ms) and is
	// capped at MaxInterval (5s).
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// UserAgent is set on requests that carry none. Nominatim and Overpass
	// refuse anonymous clients.
	UserAgent string

	CircuitBreaker *CircuitBreakerConfig
	Registry       *Registry

	// Logger receives breaker transitions unless CircuitBreaker already
	// has an OnStateChange callback.
	Logger *zerolog.Logger
}

// DefaultClientConfig returns the configuration shared by the provider clients.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         defaultTimeout,
		MaxRetries:      defaultMaxRetries,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
		CircuitBreaker:  &cb,
	}
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	switch cfg.MaxRetries {
	case 0:
		cfg.MaxRetries = defaultMaxRetries
	case NoRetries:
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaultMaxInterval
	}
	return cfg
}

// Client sends requests to one upstream through a circuit breaker, retrying
// transport errors and 5xx responses with exponential backoff.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	cfg     ClientConfig
}

// NewClient builds a Client and registers it with cfg.Registry when set.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()

	cb := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cb = *cfg.CircuitBreaker
	}
	if cb.OnStateChange == nil && cfg.Logger != nil {
		cb.OnStateChange = LogStateChanges(*cfg.Logger)
	}

	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: NewCircuitBreaker[*http.Response](cb), //nolint:bodyclose // type parameter
		cfg:     cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string { return c.cfg.Name }

// Do sends req using its own context. See DoWithContext.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext sends req, retrying transient failures until the retry
// budget is spent or ctx ends. A 5xx that survives every retry is returned
// as a response with a nil error so callers can map the status themselves.
// While the breaker is open it fails fast with ErrCircuitOpen.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.cfg.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	var last *http.Response
	keep := func(resp *http.Response) {
		if last != nil {
			_ = last.Body.Close()
		}
		last = resp
	}

	err := backoff.Retry(func() error {
		resp, err := c.attempt(ctx, req)
		if resp != nil {
			keep(resp)
		}
		return err
	}, c.policy(ctx))

	var serverErr *ServerError
	switch {
	case err == nil:
		c.record(nil)
		return last, nil
	case last != nil && errors.As(err, &serverErr):
		c.record(err)
		return last, nil
	default:
		c.record(err)
		keep(nil)
		return nil, err
	}
}

// attempt runs one request through the breaker. 5xx responses come back
// with a ServerError so they count as breaker failures and get retried.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
		r, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			return r, &ServerError{StatusCode: r.StatusCode}
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, backoff.Permanent(ErrCircuitOpen)
	}
	return resp, err
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)
}

func (c *Client) record(err error) {
	if c.cfg.Registry == nil {
		return
	}
	if err != nil {
		c.cfg.Registry.RecordFailure(c.cfg.Name, err)
		return
	}
	c.cfg.Registry.RecordSuccess(c.cfg.Name)
}

// ServerError is an upstream 5xx response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState reports the breaker state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts reports the breaker's counters for the current generation.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Package fetch loads pages over plain HTTP for static sources and probes
// response headers for the security checklist.
//
// Requests go through resty on a retryablehttp transport, wait on a
// token-bucket limiter and run inside a per-host circuit breaker, so one
// failing site neither floods nor blocks the others.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/pagelens/internal/infrastructure/resilience"
)

// ErrServerStatus marks a 5xx response. It trips the host breaker but the
// response is still returned to the caller.
var ErrServerStatus = errors.New("server error status")

// Config tunes the client.
type Config struct {
	Timeout      time.Duration
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	UserAgent    string
	// RateLimit is requests per second across all hosts; <= 0 is unlimited.
	RateLimit float64
	// BreakerFailures is the consecutive failure count that opens a host
	// breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		Retries:         3,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    30 * time.Second,
		UserAgent:       "PageLens/1.0",
		RateLimit:       5,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Client is a rate limited, retrying, breaker protected HTTP client.
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
	logger   *zap.Logger
}

// New creates a client. Zero config fields take DefaultConfig values.
func New(cfg Config, logger *zap.Logger) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = def.RetryWaitMin
	}
	if cfg.RetryWaitMax < cfg.RetryWaitMin {
		cfg.RetryWaitMax = cfg.RetryWaitMin
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = retryLogger{logger.Sugar()}
	// hand the final response back instead of a "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	httpClient := retryClient.StandardClient()
	restyClient := resty.NewWithClient(httpClient).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	failures := cfg.BreakerFailures
	breakers := resilience.NewGroup("fetch", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("fetch breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{resty: restyClient, limiter: limiter, breakers: breakers, logger: logger}
}

// BreakerStates reports the breaker state of every host contacted so far.
func (c *Client) BreakerStates() map[string]resilience.State {
	return c.breakers.States()
}

// get performs a GET through the limiter and the breaker of the URL host.
func (c *Client) get(ctx context.Context, rawURL string) (*resty.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid page url %q", rawURL)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var resp *resty.Response
	err = c.breakers.Do(u.Hostname(), func() error {
		r, err := c.resty.R().SetContext(ctx).Get(rawURL)
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode() >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %d", ErrServerStatus, r.StatusCode())
		}
		return nil
	})

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return nil, fmt.Errorf("%s unavailable: %w", u.Hostname(), err)
	case errors.Is(err, ErrServerStatus):
	case err != nil:
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}

	c.logger.Debug("fetched",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", resp.Time()))
	return resp, nil
}

// retryLogger adapts zap to retryablehttp.LeveledLogger.
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }

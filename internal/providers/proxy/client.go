package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/shellbridge/internal/infrastructure/resilience"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientConfig configures outbound HTTP for the proxy
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	Retries           int
	RequestsPerSecond float64
	UserAgent         string
}

// DefaultClientConfig returns the defaults used when nothing is configured
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:   30 * time.Second,
		Retries:   2,
		UserAgent: "shellbridge-proxy/1.0",
	}
}

// httpClient wraps resty with rate limiting and a circuit breaker
type httpClient struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

func newHTTPClient(name string, cfg ClientConfig, logger *zap.Logger) *httpClient {
	// retryablehttp supplies the pooled transport; resty owns the retry policy
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)
	if cfg.UserAgent != "" {
		restyClient.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.BaseURL != "" {
		restyClient.SetBaseURL(cfg.BaseURL)
	}
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	breaker := resilience.New(name, resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a canceled request says nothing about the upstream
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Proxy circuit breaker changed state",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &httpClient{resty: restyClient, limiter: limiter, breaker: breaker}
}

// do runs one request behind the limiter and breaker. Only transport
// errors count against the breaker; any HTTP status is a response.
func (h *httpClient) do(ctx context.Context, fn func(req *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var resp *resty.Response
	err := h.breaker.Do(func() error {
		r, err := fn(h.resty.R().SetContext(ctx))
		resp = r
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, fmt.Errorf("upstream unavailable: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Client executes proxy commands against a remote /api/proxy endpoint
type Client struct {
	http   *httpClient
	logger *zap.Logger
}

// NewClient creates a client for the proxy endpoint at cfg.BaseURL
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   newHTTPClient("proxy-endpoint", cfg, logger),
		logger: logger,
	}
}

// Execute sends cmd as GET /api/proxy?command=<json>
func (c *Client) Execute(ctx context.Context, cmd Command) (*Outcome, error) {
	if !cmd.Kind().IsProxy() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.Command)
	}

	payload, err := sonic.MarshalString(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode proxy command: %w", err)
	}

	requestID := uuid.NewString()
	resp, err := c.http.do(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetHeader("X-Request-ID", requestID).
			SetQueryParam("command", payload).
			Get("/api/proxy")
	})
	if err != nil {
		c.logger.Warn("Proxy request failed",
			zap.String("request_id", requestID),
			zap.String("command", cmd.Command),
			zap.Error(err))
		return nil, fmt.Errorf("proxy request failed: %w", err)
	}

	var body Response
	decodeErr := sonic.Unmarshal(resp.Body(), &body)

	if !resp.IsSuccess() {
		if decodeErr != nil {
			return nil, &StatusError{Code: resp.StatusCode()}
		}
		return nil, &StatusError{Code: resp.StatusCode(), Message: body.Error}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode proxy response: %w", decodeErr)
	}

	c.logger.Debug("Proxy request completed",
		zap.String("request_id", requestID),
		zap.String("command", cmd.Command),
		zap.Int("status", body.Status))
	return NewOutcome(&body), nil
}

// BreakerState reports the endpoint breaker state
func (c *Client) BreakerState() resilience.State {
	return c.http.breaker.State()
}

// LocalExecutor runs proxy commands in-process through a Runner, for
// deployments without a separate proxy endpoint
type LocalExecutor struct {
	runner *Runner
}

// NewLocalExecutor creates an executor backed by runner
func NewLocalExecutor(runner *Runner) *LocalExecutor {
	return &LocalExecutor{runner: runner}
}

// Execute runs cmd through the runner
func (l *LocalExecutor) Execute(ctx context.Context, cmd Command) (*Outcome, error) {
	resp, status := l.runner.Run(ctx, cmd)
	if status >= 300 {
		return nil, &StatusError{Code: status, Message: resp.Error}
	}
	return NewOutcome(resp), nil
}

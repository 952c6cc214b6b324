package conversations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/logging"
	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/monitoring"
	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/resilience"
)

const basePath = "/api/assistant/conversations/"

// errServerStatus marks a 5xx response as a failure for the breaker
var errServerStatus = errors.New("server error status")

// Options configures the REST client
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RetryMax          int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RequestsPerSecond float64
	// AuthToken, when set, is sent as a bearer token
	AuthToken string
	// BreakerThreshold is the number of consecutive failed requests that
	// opens the circuit; BreakerTimeout is how long it stays open
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
	Logger           *zap.Logger
	Metrics          *monitoring.Metrics
}

// DefaultOptions returns production defaults for baseURL
func DefaultOptions(baseURL string) Options {
	return Options{
		BaseURL:      baseURL,
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 30 * time.Second,

		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// Client talks to the conversation REST API with retries, rate limiting
// and a circuit breaker
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker
	Mu      sync.RWMutex

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewClient creates a conversation client
func NewClient(opts Options) *Client {
	// Retries live in the retryable transport; resty does not retry on its own
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient())
	restyClient.
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "autocoder-chat/1.0").
		SetJSONMarshaler(sonic.ConfigStd.Marshal).
		SetJSONUnmarshaler(sonic.ConfigStd.Unmarshal)

	logger := logging.OrNop(opts.Logger)

	threshold := opts.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	// Retries happen below the breaker, so one failure is one exhausted request
	breaker := resilience.NewBreaker("conversations", resilience.BreakerSettings{
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: resilience.ConsecutiveFailures(threshold),
		OnStateChange: func(name string, from, to resilience.BreakerState) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	c := &Client{
		Resty:   restyClient,
		Limiter: rate.NewLimiter(rate.Inf, 0),
		Breaker: breaker,
		logger:  logger,
		metrics: opts.Metrics,
	}
	c.SetRateLimit(opts.RequestsPerSecond)
	if opts.AuthToken != "" {
		c.SetBearerAuth(opts.AuthToken)
	}
	return c
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		c.Limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// SetBearerAuth configures bearer token authentication
func (c *Client) SetBearerAuth(token string) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Resty.SetAuthToken(token)
}

// request creates a new request after waiting for the rate limiter
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	c.Mu.RLock()
	limiter := c.Limiter
	c.Mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.Resty.R().SetContext(ctx), nil
}

// List returns the conversations of a project, most recent first
func (c *Client) List(ctx context.Context, project string) ([]Conversation, error) {
	if project == "" {
		return nil, ErrInvalidScope
	}

	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var out []Conversation
	req.SetResult(&out)

	if err := c.do(req, "list", http.MethodGet, conversationsPath(project)); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one conversation with its messages
func (c *Client) Get(ctx context.Context, project, id string) (*Detail, error) {
	if project == "" {
		return nil, ErrInvalidScope
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var out Detail
	req.SetResult(&out)

	if err := c.do(req, "get", http.MethodGet, conversationPath(project, id)); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a conversation
func (c *Client) Delete(ctx context.Context, project, id string) error {
	if project == "" {
		return ErrInvalidScope
	}
	if id == "" {
		return ErrInvalidID
	}

	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	var out deleteResponse
	req.SetResult(&out)

	if err := c.do(req, "delete", http.MethodDelete, conversationPath(project, id)); err != nil {
		return err
	}
	if !out.Success && out.Message != "" {
		return fmt.Errorf("delete conversation %s: %s", id, out.Message)
	}
	return nil
}

func (c *Client) do(req *resty.Request, operation, method, path string) error {
	var errBody apiErrorBody
	req.SetError(&errBody)

	start := time.Now()
	var (
		resp    *resty.Response
		execErr error
	)
	err := c.Breaker.Execute(func() error {
		resp, execErr = req.Execute(method, path)
		switch {
		case execErr != nil && req.Context().Err() != nil:
			// Cancelled by the caller, not a failing server
			return nil
		case execErr != nil:
			return execErr
		case resp.StatusCode() >= http.StatusInternalServerError:
			return errServerStatus
		}
		return nil
	})
	if err == nil || errors.Is(err, errServerStatus) {
		err = execErr
	}
	elapsed := time.Since(start)

	if err != nil {
		status := "error"
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			status = "circuit_open"
		}
		c.metrics.ObserveREST(operation, status, elapsed)
		c.logger.Warn("conversation request failed",
			zap.String("operation", operation),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("%s conversations: %w", operation, err)
	}

	c.metrics.ObserveREST(operation, strconv.Itoa(resp.StatusCode()), elapsed)
	c.logger.Debug("conversation request",
		zap.String("operation", operation),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", elapsed))

	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", operation, path, ErrNotFound)
	}
	if resp.IsError() {
		return &APIError{Operation: operation, StatusCode: resp.StatusCode(), Detail: errBody.Detail}
	}
	return nil
}

func conversationsPath(project string) string {
	return basePath + url.PathEscape(project)
}

func conversationPath(project, id string) string {
	return conversationsPath(project) + "/" + url.PathEscape(id)
}

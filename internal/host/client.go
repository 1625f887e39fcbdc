// Package host talks to the design host's JSON command API over HTTP.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/rpattn/classcheck/internal/middleware"
)

const (
	// DefaultPort is the port the host listens on when nothing else is configured.
	DefaultPort = 19723
	// PortUnset marks a port that was not supplied on the command line.
	PortUnset = -1
)

// Config configures the host client.
type Config struct {
	// Address is the interface the host API listens on (default: 127.0.0.1).
	Address string
	// Port is the host API port (default: 19723).
	Port int
	// Endpoint, when set, replaces the URL built from Address and Port.
	Endpoint string
	// Timeout bounds each HTTP request, including each batch of a batched command (default: 60s).
	Timeout time.Duration
	// CommandTimeout bounds one whole command across all of its batches and retries (default: 30m).
	CommandTimeout time.Duration
	// MaxRetries for transient failures (default: 2).
	MaxRetries int
	// RateLimit in requests per second (default: 20).
	RateLimit float64
	// RateBurst is the limiter burst size (default: 1).
	RateBurst int
	// BatchSize is the number of elements sent per element-scoped command (default: 2000).
	BatchSize int
	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
	// Logger receives request diagnostics.
	Logger *slog.Logger
}

// DefaultConfig returns a client config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Address:        "127.0.0.1",
		Port:           DefaultPort,
		Timeout:        60 * time.Second,
		CommandTimeout: 30 * time.Minute,
		MaxRetries:     2,
		RateLimit:      20,
		RateBurst:      1,
		BatchSize:      2000,
	}
}

// BaseURL returns the endpoint commands are posted to.
func (c Config) BaseURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return "http://" + net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Client executes host commands one at a time.
type Client struct {
	config      Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a client, filling unset config fields with defaults.
func NewClient(config Config) *Client {
	defaults := DefaultConfig()
	if config.Address == "" {
		config.Address = defaults.Address
	}
	if config.Port <= 0 {
		config.Port = defaults.Port
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = defaults.CommandTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaults.RateLimit
	}
	if config.RateBurst <= 0 {
		config.RateBurst = defaults.RateBurst
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config: config,
		// Per-request deadlines come from doOnce so that they surface as context errors.
		httpClient: &http.Client{
			Transport: middleware.LoggingTransport(config.Transport, logger),
		},
		rateLimiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		logger:      logger,
	}
}

// BaseURL returns the endpoint the client posts to.
func (c *Client) BaseURL() string {
	return c.config.BaseURL()
}

type commandRequest struct {
	Command    string `json:"command"`
	Parameters any    `json:"parameters,omitempty"`
}

type commandResponse struct {
	Succeeded bool            `json:"succeeded"`
	Result    json.RawMessage `json:"result"`
	Error     *apiError       `json:"error,omitempty"`
}

// Execute posts one command and decodes its result into out. out may be nil.
func (c *Client) Execute(ctx context.Context, command string, params any, out any) error {
	body, err := json.Marshal(commandRequest{Command: command, Parameters: params})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", command, err)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var payload []byte
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		payload, lastErr = c.doOnce(ctx, body)
		if lastErr == nil {
			break
		}
		if !isRetryable(lastErr) || attempt == c.config.MaxRetries {
			break
		}

		backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
		c.logger.Debug("retrying host command", "command", command, "attempt", attempt+1, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%s: %w", command, lastErr)
	}

	var resp commandResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", command, err)
	}
	if !resp.Succeeded {
		cmdErr := &CommandError{Command: command}
		if resp.Error != nil {
			cmdErr.Code = resp.Error.Code
			cmdErr.Message = resp.Error.Message
		}
		return cmdErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", command, err)
	}
	return nil
}

// doOnce sends one request under its own Timeout deadline.
func (c *Client) doOnce(ctx context.Context, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(payload)}
	}
	return payload, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return true
}

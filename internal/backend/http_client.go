package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	askPath    = "/api/chat"
	healthPath = "/api/health"

	// maxResponseBytes bounds how much of an answer body is read.
	maxResponseBytes = 1 << 20
)

// HTTPClientConfig holds configuration for the HTTP client.
type HTTPClientConfig struct {
	BaseURL      string
	AskTimeout   time.Duration
	ProbeTimeout time.Duration
}

// DefaultHTTPClientConfig returns default configuration.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		BaseURL:      "http://localhost:5001",
		AskTimeout:   20 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// HTTPClient talks to the answering service over its JSON API.
// It is safe for concurrent use.
type HTTPClient struct {
	cfg    HTTPClientConfig
	http   *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates a client, filling zero config values with defaults.
func NewHTTPClient(cfg HTTPClientConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultHTTPClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.AskTimeout <= 0 {
		cfg.AskTimeout = def.AskTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &HTTPClient{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
}

// BaseURL returns the normalized service URL.
func (c *HTTPClient) BaseURL() string {
	return c.cfg.BaseURL
}

// Probe checks the health endpoint. Only reachability and a 2xx status matter.
func (c *HTTPClient) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+healthPath, nil)
	if err != nil {
		return &ClientError{Kind: KindConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, "health probe failed", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close health response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ClientError{Kind: KindStatus, Message: "unexpected health status: " + resp.Status}
	}
	return nil
}

// Ask posts one message to the ask endpoint.
//
// A body that decodes and carries a "success" field is well-formed regardless of
// the HTTP status, since the service answers failures as 500 with success=false.
// Anything else is a ClientError.
func (c *HTTPClient) Ask(ctx context.Context, message string) (AskResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AskTimeout)
	defer cancel()

	payload, err := json.Marshal(AskRequest{Message: message})
	if err != nil {
		return AskResult{}, &ClientError{Kind: KindInvalidResponse, Message: "failed to encode request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+askPath, bytes.NewReader(payload))
	if err != nil {
		return AskResult{}, &ClientError{Kind: KindConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return AskResult{}, classifyTransport(ctx, "ask request failed", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close ask response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return AskResult{}, classifyTransport(ctx, "failed to read ask response", err)
	}

	var wire askWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return AskResult{}, &ClientError{
			Kind:    KindInvalidResponse,
			Message: fmt.Sprintf("malformed ask response (status %d)", resp.StatusCode),
			Cause:   err,
		}
	}
	if wire.Success == nil {
		return AskResult{}, &ClientError{
			Kind:    KindInvalidResponse,
			Message: fmt.Sprintf("ask response without success flag (status %d)", resp.StatusCode),
		}
	}

	result := AskResult{
		Success:  *wire.Success,
		Response: wire.Response,
		Error:    wire.Error,
	}
	if result.Success && resp.StatusCode >= 300 {
		return AskResult{}, &ClientError{Kind: KindStatus, Message: "unexpected ask status: " + resp.Status}
	}
	return result, nil
}

func classifyTransport(ctx context.Context, msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ClientError{Kind: KindTimeout, Message: msg + ": timed out", Cause: err}
	}
	return &ClientError{Kind: KindConnection, Message: msg, Cause: err}
}

var (
	_ Asker  = (*HTTPClient)(nil)
	_ Prober = (*HTTPClient)(nil)
)

package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/reelcast/internal/logger"
)

// DefaultTimeout bounds a single vendor request
const DefaultTimeout = 30 * time.Second

// Options configures an HTTP capability client
type Options struct {
	// Operation names the capability in errors and logs
	Operation string
	// BaseURL is the vendor API root; jobs are submitted to {BaseURL}/jobs
	BaseURL string
	// APIKey is sent as a bearer token when set
	APIKey string
	// Timeout bounds each request
	Timeout time.Duration
}

// HTTPClient talks to a vendor exposing POST /jobs and GET /jobs/{id}
type HTTPClient[In, Out any] struct {
	operation string
	baseURL   string
	apiKey    string
	timeout   time.Duration
}

var _ Capability[NarrationInput, NarrationOutput] = &HTTPClient[NarrationInput, NarrationOutput]{}

// NewHTTPClient creates a vendor client
func NewHTTPClient[In, Out any](opts Options) (*HTTPClient[In, Out], error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%s: base URL is required", opts.Operation)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("%s: invalid base URL: %w", opts.Operation, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &HTTPClient[In, Out]{
		operation: opts.Operation,
		baseURL:   opts.BaseURL,
		apiKey:    opts.APIKey,
		timeout:   opts.Timeout,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *HTTPClient[In, Out]) createAgent(ctx context.Context, method, endpoint string, body interface{}) *fiber.Agent {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	if method == http.MethodPost {
		agent = fiber.Post(fullURL)
	} else {
		agent = fiber.Get(fullURL)
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < c.timeout {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set("Accept", "application/json")
	if c.apiKey != "" {
		agent.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		agent.JSON(body)
	}
	return agent
}

// Invoke submits the input and returns the vendor handle
func (c *HTTPClient[In, Out]) Invoke(ctx context.Context, in In) (Handle, error) {
	agent := c.createAgent(ctx, http.MethodPost, "/jobs", in)
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", &RemoteSubmissionError{Operation: c.operation, Message: errs[0].Error()}
	}
	if statusCode < 200 || statusCode >= 300 {
		return "", &RemoteSubmissionError{Operation: c.operation, StatusCode: statusCode, Message: summarize(body)}
	}

	var submitted RawResult
	if err := json.Unmarshal(body, &submitted); err != nil || submitted.ID == "" {
		return "", &RemoteSubmissionError{Operation: c.operation, StatusCode: statusCode, Message: "response carried no job id"}
	}
	return Handle(submitted.ID), nil
}

// Poll queries the vendor once. Transport errors, throttling and 5xx answers
// are reported as pending so the caller's budget decides when to give up.
func (c *HTTPClient[In, Out]) Poll(ctx context.Context, h Handle) PollResult[Out] {
	agent := c.createAgent(ctx, http.MethodGet, "/jobs/"+url.PathEscape(h.String()), nil)
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		logger.DebugWithFields("transient poll error", map[string]interface{}{
			"operation": c.operation,
			"handle":    h.String(),
			"error":     errs[0].Error(),
		})
		return Pending[Out]()
	}

	switch {
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return Pending[Out]()
	case statusCode == http.StatusNotFound:
		return Failed[Out](fmt.Sprintf("%s: unknown handle %s", c.operation, h))
	case statusCode < 200 || statusCode >= 300:
		return Failed[Out](fmt.Sprintf("%s: status query rejected (%d)", c.operation, statusCode))
	}

	var raw RawResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return Pending[Out]()
	}
	return c.Decode(raw)
}

// Decode maps a vendor status document to a PollResult
func (c *HTTPClient[In, Out]) Decode(raw RawResult) PollResult[Out] {
	return DecodeRaw[Out](c.operation, raw)
}

// summarize keeps vendor error bodies short enough to surface to users
func summarize(body []byte) string {
	var raw RawResult
	if err := json.Unmarshal(body, &raw); err == nil && raw.Error != "" {
		return raw.Error
	}
	const limit = 200
	if len(body) > limit {
		return string(body[:limit])
	}
	if len(body) == 0 {
		return "empty response"
	}
	return string(body)
}

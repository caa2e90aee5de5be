// Package client provides the API client for interacting with the reelcast API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/reelcast/pkg/api/v1/routes"
	"github.com/celestiaorg/reelcast/pkg/types"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for API client
type Client interface {
	// Health Check
	HealthCheck(ctx context.Context) (map[string]string, error)

	// Job Endpoints
	CreateJob(ctx context.Context, req types.CreateJobRequest) (types.CreateJobResponse, error)
	GetJob(ctx context.Context, id string) (types.JobReport, error)
	ListJobs(ctx context.Context, params ListJobsParams) (types.ListResponse[types.JobReport], error)
	AdvanceJob(ctx context.Context, id string) (types.AdvanceResponse, error)
	RetryJob(ctx context.Context, id string) (types.JobReport, error)
	RestartJob(ctx context.Context, id string) (types.CreateJobResponse, error)
}

var _ Client = &APIClient{}

// ListJobsParams filters a job listing
type ListJobsParams struct {
	Status string
	Page   int
}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration

	// TriggerToken authorizes calls to the advance endpoint
	TriggerToken string
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL      string
	timeout      time.Duration
	triggerToken string
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate the base URL
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &APIClient{
		baseURL:      opts.BaseURL,
		timeout:      timeout,
		triggerToken: opts.TriggerToken,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	// Resolve the endpoint URL
	fullURL := c.baseURL + endpoint

	// Create a new agent based on the HTTP method
	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	// Set common headers
	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")

	// Add body if provided
	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// envelope is the wire form of types.SlugResponse with the payload kept raw
type envelope struct {
	Slug  types.Slug      `json:"slug"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

// doRequest sends the HTTP request and unwraps the response envelope into v
func (c *APIClient) doRequest(agent *fiber.Agent, v interface{}) error {
	// Execute the request
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	// Check for non-success status codes
	if statusCode < 200 || statusCode >= 300 {
		msg := string(body)
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		return &fiber.Error{
			Code:    statusCode,
			Message: msg,
		}
	}

	if v == nil || len(body) == 0 {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("error decoding response: %w", decodeErr)
	}

	// Plain responses such as the health check carry no envelope
	payload := env.Data
	if env.Slug == "" {
		payload = body
	}
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("error decoding response data: %w", err)
	}
	return nil
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	return c.doRequest(agent, response)
}

// Health check

// HealthCheck checks the health of the API
func (c *APIClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	var response map[string]string
	if err := c.executeRequest(ctx, http.MethodGet, routes.HealthCheckURL(), nil, &response); err != nil {
		return nil, err
	}
	return response, nil
}

// Job methods

// CreateJob submits a render request
func (c *APIClient) CreateJob(ctx context.Context, req types.CreateJobRequest) (types.CreateJobResponse, error) {
	var response types.CreateJobResponse
	err := c.executeRequest(ctx, http.MethodPost, routes.CreateJobURL(), req, &response)
	return response, err
}

// GetJob retrieves the progress report of a job
func (c *APIClient) GetJob(ctx context.Context, id string) (types.JobReport, error) {
	var response types.JobReport
	err := c.executeRequest(ctx, http.MethodGet, routes.GetJobURL(id), nil, &response)
	return response, err
}

// ListJobs retrieves a page of jobs
func (c *APIClient) ListJobs(ctx context.Context, params ListJobsParams) (types.ListResponse[types.JobReport], error) {
	q := url.Values{}
	if params.Status != "" {
		q.Set("status", params.Status)
	}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}

	var response types.ListResponse[types.JobReport]
	err := c.executeRequest(ctx, http.MethodGet, routes.GetJobsURL(q), nil, &response)
	return response, err
}

// AdvanceJob runs one pipeline invocation of a job
func (c *APIClient) AdvanceJob(ctx context.Context, id string) (types.AdvanceResponse, error) {
	var response types.AdvanceResponse
	agent, err := c.createAgent(ctx, http.MethodPost, routes.AdvanceJobURL(id), types.AdvanceRequest{JobID: id})
	if err != nil {
		return response, err
	}
	if c.triggerToken != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+c.triggerToken)
	}
	err = c.doRequest(agent, &response)
	return response, err
}

// RetryJob resumes a failed job
func (c *APIClient) RetryJob(ctx context.Context, id string) (types.JobReport, error) {
	var response types.JobReport
	err := c.executeRequest(ctx, http.MethodPost, routes.RetryJobURL(id), nil, &response)
	return response, err
}

// RestartJob starts a new job from an existing job's request
func (c *APIClient) RestartJob(ctx context.Context, id string) (types.CreateJobResponse, error) {
	var response types.CreateJobResponse
	err := c.executeRequest(ctx, http.MethodPost, routes.RestartJobURL(id), nil, &response)
	return response, err
}

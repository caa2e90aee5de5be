// Package mock provides a programmable Client for tests
package mock

import (
	"context"

	"github.com/celestiaorg/reelcast/pkg/api/v1/client"
	"github.com/celestiaorg/reelcast/pkg/types"
)

var _ client.Client = &MockClient{}

// MockClient implements the Client interface for testing
type MockClient struct {
	// Function fields that can be set to mock behavior
	HealthCheckFn func(ctx context.Context) (map[string]string, error)
	CreateJobFn   func(ctx context.Context, req types.CreateJobRequest) (types.CreateJobResponse, error)
	GetJobFn      func(ctx context.Context, id string) (types.JobReport, error)
	ListJobsFn    func(ctx context.Context, params client.ListJobsParams) (types.ListResponse[types.JobReport], error)
	AdvanceJobFn  func(ctx context.Context, id string) (types.AdvanceResponse, error)
	RetryJobFn    func(ctx context.Context, id string) (types.JobReport, error)
	RestartJobFn  func(ctx context.Context, id string) (types.CreateJobResponse, error)

	// Call tracking for verification
	CreateJobCalls []types.CreateJobRequest
	GetJobCalls    []string
	ListJobsCalls  []client.ListJobsParams
	AdvanceCalls   []string
	RetryCalls     []string
	RestartCalls   []string
}

// HealthCheck implements Client
func (m *MockClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	if m.HealthCheckFn != nil {
		return m.HealthCheckFn(ctx)
	}
	return map[string]string{"status": "healthy"}, nil
}

// CreateJob implements Client
func (m *MockClient) CreateJob(ctx context.Context, req types.CreateJobRequest) (types.CreateJobResponse, error) {
	m.CreateJobCalls = append(m.CreateJobCalls, req)
	if m.CreateJobFn != nil {
		return m.CreateJobFn(ctx, req)
	}
	return types.CreateJobResponse{}, nil
}

// GetJob implements Client
func (m *MockClient) GetJob(ctx context.Context, id string) (types.JobReport, error) {
	m.GetJobCalls = append(m.GetJobCalls, id)
	if m.GetJobFn != nil {
		return m.GetJobFn(ctx, id)
	}
	return types.JobReport{JobID: id}, nil
}

// ListJobs implements Client
func (m *MockClient) ListJobs(ctx context.Context, params client.ListJobsParams) (types.ListResponse[types.JobReport], error) {
	m.ListJobsCalls = append(m.ListJobsCalls, params)
	if m.ListJobsFn != nil {
		return m.ListJobsFn(ctx, params)
	}
	return types.ListResponse[types.JobReport]{}, nil
}

// AdvanceJob implements Client
func (m *MockClient) AdvanceJob(ctx context.Context, id string) (types.AdvanceResponse, error) {
	m.AdvanceCalls = append(m.AdvanceCalls, id)
	if m.AdvanceJobFn != nil {
		return m.AdvanceJobFn(ctx, id)
	}
	return types.AdvanceResponse{JobID: id}, nil
}

// RetryJob implements Client
func (m *MockClient) RetryJob(ctx context.Context, id string) (types.JobReport, error) {
	m.RetryCalls = append(m.RetryCalls, id)
	if m.RetryJobFn != nil {
		return m.RetryJobFn(ctx, id)
	}
	return types.JobReport{JobID: id}, nil
}

// RestartJob implements Client
func (m *MockClient) RestartJob(ctx context.Context, id string) (types.CreateJobResponse, error) {
	m.RestartCalls = append(m.RestartCalls, id)
	if m.RestartJobFn != nil {
		return m.RestartJobFn(ctx, id)
	}
	return types.CreateJobResponse{}, nil
}

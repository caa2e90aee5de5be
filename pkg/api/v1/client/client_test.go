// Package client provides unit tests for the reelcast API client.
//
// The tests use httptest to create a mock server that simulates the API,
// allowing the client to be tested without requiring an actual API server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/pipeline"
	"github.com/celestiaorg/reelcast/pkg/types"
)

// TestNewClient tests the NewClient function with various configurations.
func TestNewClient(t *testing.T) {
	tests := []struct {
		name       string
		opts       *Options
		wantErr    bool
		validateFn func(t *testing.T, client Client)
	}{
		{
			name: "nil options",
			validateFn: func(t *testing.T, client Client) {
				apiClient, ok := client.(*APIClient)
				require.True(t, ok, "client should be an *APIClient")

				expectedDefaults := DefaultOptions()
				assert.Equal(t, expectedDefaults.BaseURL, apiClient.baseURL)
				assert.Equal(t, expectedDefaults.Timeout, apiClient.timeout)
			},
		},
		{
			name: "valid options",
			opts: &Options{
				BaseURL:      "http://example.com",
				Timeout:      10 * time.Second,
				TriggerToken: "secret",
			},
			validateFn: func(t *testing.T, client Client) {
				apiClient, ok := client.(*APIClient)
				require.True(t, ok, "client should be an *APIClient")

				assert.Equal(t, "http://example.com", apiClient.baseURL)
				assert.Equal(t, 10*time.Second, apiClient.timeout)
				assert.Equal(t, "secret", apiClient.triggerToken)
			},
		},
		{
			name:    "invalid base URL",
			opts:    &Options{BaseURL: "://invalid-url"},
			wantErr: true,
		},
		{
			name:    "relative base URL",
			opts:    &Options{BaseURL: "localhost"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateFn(t, client)
		})
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(&Options{BaseURL: server.URL, Timeout: 5 * time.Second, TriggerToken: "secret"})
	require.NoError(t, err)
	return c
}

func TestHealthCheck(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	resp, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", resp["status"])
}

func TestCreateJob(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/jobs", r.URL.Path)

		var req types.CreateJobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "narrator", req.VoiceID)
		require.Len(t, req.Scenes, 1)

		writeJSON(t, w, http.StatusCreated, types.Success(types.CreateJobResponse{
			JobID:  "job-1",
			Status: models.JobStatusPending,
		}))
	})

	resp, err := c.CreateJob(context.Background(), types.CreateJobRequest{
		VoiceID: "narrator",
		Scenes:  []types.SceneRequest{{Text: "hello", Kind: models.SceneKindStaticAsset}},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, models.JobStatusPending, resp.Status)
}

func TestCreateJob_ValidationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, types.ErrInvalidInput("scenes: at least one scene is required"))
	})

	_, err := c.CreateJob(context.Background(), types.CreateJobRequest{})
	require.Error(t, err)

	var ferr *fiber.Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusBadRequest, ferr.Code)
	assert.Equal(t, "scenes: at least one scene is required", ferr.Message)
}

func TestGetJob(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jobs/job-1", r.URL.Path)
		writeJSON(t, w, http.StatusOK, types.Success(types.JobReport{
			JobID:             "job-1",
			Status:            models.JobStatusProcessing,
			ProgressPercent:   38,
			TotalScenes:       5,
			CurrentSceneIndex: 2,
			CompletedCount:    2,
		}))
	})

	report, err := c.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, report.Status)
	assert.Equal(t, 38, report.ProgressPercent)
	assert.Equal(t, 2, report.CurrentSceneIndex)
}

func TestGetJob_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusNotFound, types.ErrNotFound("Job not found"))
	})

	_, err := c.GetJob(context.Background(), "missing")
	var ferr *fiber.Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusNotFound, ferr.Code)
}

func TestListJobs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jobs", r.URL.Path)
		assert.Equal(t, "failed", r.URL.Query().Get("status"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		writeJSON(t, w, http.StatusOK, types.Success(types.ListResponse[types.JobReport]{
			Rows:       []types.JobReport{{JobID: "job-1", Status: models.JobStatusFailed}},
			Pagination: types.PaginationResponse{Total: 1, Page: 3, Limit: 50, Offset: 100},
		}))
	})

	resp, err := c.ListJobs(context.Background(), ListJobsParams{Status: "failed", Page: 3})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "job-1", resp.Rows[0].JobID)
	assert.Equal(t, 100, resp.Pagination.Offset)
}

func TestAdvanceJob_SendsTriggerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jobs/job-1/advance", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"job_id":"job-1"}`, string(body))

		writeJSON(t, w, http.StatusOK, types.Success(types.AdvanceResponse{
			JobID:   "job-1",
			Outcome: pipeline.OutcomeSceneCompleted,
		}))
	})

	resp, err := c.AdvanceJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeSceneCompleted, resp.Outcome)
}

func TestRetryAndRestartJob(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/jobs/job-1/retry":
			writeJSON(t, w, http.StatusConflict, types.ErrConflict("only failed jobs can be retried"))
		case "/api/v1/jobs/job-1/restart":
			writeJSON(t, w, http.StatusCreated, types.Success(types.CreateJobResponse{JobID: "job-2", Status: models.JobStatusPending}))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	_, err := c.RetryJob(context.Background(), "job-1")
	var ferr *fiber.Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusConflict, ferr.Code)
	assert.Equal(t, "only failed jobs can be retried", ferr.Message)

	resp, err := c.RestartJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-2", resp.JobID)
}

func TestRequestTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(t, w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.HealthCheck(ctx)
	assert.Error(t, err)
}

package types

import (
	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/pipeline"
)

// CreateJobRequest is the body of a job creation request
type CreateJobRequest = models.JobInput

// SceneRequest is one narrated segment of a CreateJobRequest
type SceneRequest = models.SceneRequest

// JobReport is the progress view of a job
type JobReport = pipeline.ProgressReport

// CreateJobResponse is returned when a job is accepted
type CreateJobResponse struct {
	JobID  string           `json:"job_id"`
	Status models.JobStatus `json:"status"`
}

// AdvanceRequest is the body of a driver trigger
type AdvanceRequest struct {
	JobID string `json:"job_id"`
}

// AdvanceResponse reports what one invocation achieved
type AdvanceResponse struct {
	JobID   string           `json:"job_id"`
	Outcome pipeline.Outcome `json:"outcome"`
}

// WebhookResponse acknowledges a vendor webhook
type WebhookResponse struct {
	Operation models.OperationKind `json:"operation"`
	Outcome   pipeline.Outcome     `json:"outcome"`
}

package pipeline

import (
	"time"

	"github.com/celestiaorg/reelcast/internal/db/models"
)

// Progress milestones in percent
const (
	SetupPercent    = 10
	ComposePercent  = 80
	CompletePercent = 100
)

// ScenePercent is the progress after done of total scenes
func ScenePercent(done, total int) int {
	if total <= 0 {
		return SetupPercent
	}
	return SetupPercent + done*(ComposePercent-SetupPercent)/total
}

// ProgressReport is the read-only view served to pollers
type ProgressReport struct {
	JobID             string               `json:"job_id"`
	Status            models.JobStatus     `json:"status"`
	ProgressPercent   int                  `json:"progress_percent"`
	ProgressMessage   string               `json:"progress_message"`
	TotalScenes       int                  `json:"total_scenes"`
	CurrentSceneIndex int                  `json:"current_scene_index"`
	CompletedCount    int                  `json:"completed_count"`
	IsComposing       bool                 `json:"is_composing"`
	Attempt           int                  `json:"attempt"`
	ResultVideoURL    string               `json:"result_video_url,omitempty"`
	ResultDuration    float64              `json:"result_duration,omitempty"`
	ErrorMessage      string               `json:"error_message,omitempty"`
	Scenes            []models.SceneResult `json:"scenes"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// Report translates a job into its progress view. It has no side effects.
func Report(job *models.Job) ProgressReport {
	scenes := []models.SceneResult(job.CompletedScenes)
	if scenes == nil {
		scenes = []models.SceneResult{}
	}
	return ProgressReport{
		JobID:             job.ID,
		Status:            job.Status,
		ProgressPercent:   job.ProgressPercent,
		ProgressMessage:   job.ProgressMessage,
		TotalScenes:       job.TotalScenes,
		CurrentSceneIndex: job.CurrentSceneIndex,
		CompletedCount:    len(scenes),
		IsComposing:       job.Status == models.JobStatusProcessing && job.CurrentSceneIndex == job.TotalScenes,
		Attempt:           job.Attempt,
		ResultVideoURL:    job.ResultVideoURL,
		ResultDuration:    job.ResultDuration,
		ErrorMessage:      job.ErrorMessage,
		Scenes:            scenes,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
}

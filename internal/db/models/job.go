package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Field names for the job model
const (
	JobIDField                = "id"
	JobStatusField            = "status"
	JobVersionField           = "version"
	JobCurrentSceneIndexField = "current_scene_index"
	JobCompletedScenesField   = "completed_scenes"
	JobNarrationCacheField    = "narration_cache"
	JobPendingKindField       = "pending_kind"
	JobPendingHandleField     = "pending_handle"
	JobPendingSceneIndexField = "pending_scene_index"
	JobPendingStartedAtField  = "pending_started_at"
	JobProgressPercentField   = "progress_percent"
	JobProgressMessageField   = "progress_message"
	JobResultVideoURLField    = "result_video_url"
	JobResultDurationField    = "result_duration"
	JobErrorMessageField      = "error_message"
	JobAttemptField           = "attempt"
	JobCreatedAtField         = "created_at"
	JobUpdatedAtField         = "updated_at"
)

// JobStatus represents the current state of a render job
type JobStatus string

// Job status constants
const (
	// JobStatusPending indicates the job was created but not started
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates scenes or composition are in progress
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the final video was rendered
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a step failed and the job stopped
	JobStatusFailed JobStatus = "failed"
)

// String returns the string representation of the job status
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further advance may change the job
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ParseJobStatus converts a string to a JobStatus type
func ParseJobStatus(str string) (JobStatus, error) {
	switch str {
	case string(JobStatusPending):
		return JobStatusPending, nil
	case string(JobStatusProcessing):
		return JobStatusProcessing, nil
	case string(JobStatusCompleted):
		return JobStatusCompleted, nil
	case string(JobStatusFailed):
		return JobStatusFailed, nil
	default:
		return "", fmt.Errorf("invalid job status: %s", str)
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}

// OperationKind identifies which remote capability a pending operation belongs to
type OperationKind string

// Operation kinds
const (
	OperationNarration     OperationKind = "narration"
	OperationTalkingHead   OperationKind = "talking_head"
	OperationImage         OperationKind = "image"
	OperationTranscription OperationKind = "transcription"
	OperationRender        OperationKind = "render"
)

// String returns the string representation of the operation kind
func (k OperationKind) String() string {
	return string(k)
}

// ParseOperationKind converts a string to an OperationKind
func ParseOperationKind(str string) (OperationKind, error) {
	switch OperationKind(str) {
	case OperationNarration, OperationTalkingHead, OperationImage, OperationTranscription, OperationRender:
		return OperationKind(str), nil
	default:
		return "", fmt.Errorf("invalid operation kind: %s", str)
	}
}

// PendingOperation is the single slot recording a remote call that was
// submitted but whose result is not yet applied to the job. A slot with a
// kind but no handle has been claimed and the submission is in flight.
type PendingOperation struct {
	Kind       OperationKind `json:"kind,omitempty" gorm:"type:varchar(32)"`
	Handle     string        `json:"handle,omitempty" gorm:"index"`
	SceneIndex int           `json:"scene_index"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
}

// IsEmpty reports whether the slot is free
func (p PendingOperation) IsEmpty() bool {
	return p.Kind == ""
}

// Job is one requested video render
type Job struct {
	ID                string                                `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Status            JobStatus                             `json:"status" gorm:"not null;index;type:varchar(16)"`
	Version           uint                                  `json:"version" gorm:"not null"`
	Input             datatypes.JSONType[JobInput]          `json:"input" gorm:"not null"`
	TotalScenes       int                                   `json:"total_scenes" gorm:"not null"`
	CurrentSceneIndex int                                   `json:"current_scene_index" gorm:"not null"`
	CompletedScenes   datatypes.JSONSlice[SceneResult]      `json:"completed_scenes"`
	NarrationCache    datatypes.JSONType[*NarrationResult] `json:"narration_cache,omitempty"`
	Pending           PendingOperation                      `json:"pending_operation" gorm:"embedded;embeddedPrefix:pending_"`
	ProgressPercent   int                                   `json:"progress_percent"`
	ProgressMessage   string                                `json:"progress_message"`
	ResultVideoURL    string                                `json:"result_video_url,omitempty"`
	ResultDuration    float64                               `json:"result_duration,omitempty"`
	ErrorMessage      string                                `json:"error_message,omitempty" gorm:"type:text"`
	Attempt           int                                   `json:"attempt" gorm:"not null;default:1"`
	RestartedFrom     string                                `json:"restarted_from,omitempty" gorm:"type:varchar(36)"`
	CreatedAt         time.Time                             `json:"created_at" gorm:"index"`
	UpdatedAt         time.Time                             `json:"updated_at" gorm:"index"`
}

// TableName overrides the default table name
func (Job) TableName() string {
	return "render_jobs"
}

// BeforeCreate assigns an id and the initial cursor state
func (j *Job) BeforeCreate(_ *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.Attempt == 0 {
		j.Attempt = 1
	}
	if j.CompletedScenes == nil {
		j.CompletedScenes = datatypes.JSONSlice[SceneResult]{}
	}
	j.TotalScenes = len(j.Input.Data().Scenes)
	return nil
}

// Params returns the request snapshot
func (j *Job) Params() JobInput {
	return j.Input.Data()
}

// Narration returns the cached narration, or nil
func (j *Job) Narration() *NarrationResult {
	return j.NarrationCache.Data()
}

// SetNarration replaces the cached narration
func (j *Job) SetNarration(n *NarrationResult) {
	j.NarrationCache = datatypes.NewJSONType(n)
}

// NewJob builds a pending job for the given input
func NewJob(input JobInput) *Job {
	return &Job{
		Status:          JobStatusPending,
		Input:           datatypes.NewJSONType(input),
		TotalScenes:     len(input.Scenes),
		CompletedScenes: datatypes.JSONSlice[SceneResult]{},
		Attempt:         1,
	}
}

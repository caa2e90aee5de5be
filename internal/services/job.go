package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/db/repos"
	"github.com/celestiaorg/reelcast/internal/events"
	"github.com/celestiaorg/reelcast/internal/logger"
)

// ValidationError reports a request field the caller has to fix
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Kicker schedules the first invocation of a job
type Kicker interface {
	Kick(ctx context.Context, jobID string) error
}

// Retrier moves failed jobs back to processing
type Retrier interface {
	Retry(ctx context.Context, id string) (*models.Job, error)
}

// Publisher receives lifecycle events
type Publisher interface {
	Publish(events.Event)
}

// JobLimits bounds and completes incoming requests
type JobLimits struct {
	MaxScenes    int
	DefaultVoice string
	// ImageEnabled reports whether an image vendor can serve image prompts
	ImageEnabled bool
}

// Job provides business logic for render jobs
type Job struct {
	repo      *repos.JobRepository
	retrier   Retrier
	kicker    Kicker
	publisher Publisher
	limits    JobLimits
}

// NewJobService creates a new job service instance. publisher may be nil.
func NewJobService(repo *repos.JobRepository, retrier Retrier, kicker Kicker, publisher Publisher, limits JobLimits) *Job {
	if limits.MaxScenes <= 0 {
		limits.MaxScenes = 20
	}
	return &Job{
		repo:      repo,
		retrier:   retrier,
		kicker:    kicker,
		publisher: publisher,
		limits:    limits,
	}
}

// Create validates the request, stores a pending job and schedules it
func (s *Job) Create(ctx context.Context, input models.JobInput) (*models.Job, error) {
	input, err := s.normalize(input)
	if err != nil {
		return nil, err
	}

	job := models.NewJob(input)
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	logger.InfoWithFields("Job created", map[string]interface{}{
		"job_id": job.ID,
		"scenes": job.TotalScenes,
	})
	s.publish(job, events.EventJobCreated)
	s.kick(ctx, job)
	return job, nil
}

// Get retrieves a job by id
func (s *Job) Get(ctx context.Context, id string) (*models.Job, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves a page of jobs and the total number matching the filter
func (s *Job) List(ctx context.Context, opts *models.ListOptions) ([]models.Job, int64, error) {
	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// Retry resumes a failed job at its scene cursor
func (s *Job) Retry(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.retrier.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	s.kick(ctx, job)
	return job, nil
}

// Restart creates a new job from the input of an existing one. The original
// job and its scene results are left untouched.
func (s *Job) Restart(ctx context.Context, id string) (*models.Job, error) {
	original, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	job := models.NewJob(original.Params())
	job.RestartedFrom = original.ID
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	logger.InfoWithFields("Job restarted", map[string]interface{}{
		"job_id":         job.ID,
		"restarted_from": original.ID,
	})
	s.publish(job, events.EventJobCreated)
	s.kick(ctx, job)
	return job, nil
}

// kick schedules the job. A failed kick leaves the job pending for the sweeper.
func (s *Job) kick(ctx context.Context, job *models.Job) {
	if s.kicker == nil {
		return
	}
	if err := s.kicker.Kick(ctx, job.ID); err != nil {
		logger.WarnWithFields("Failed to schedule job", map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	}
}

func (s *Job) publish(job *models.Job, t events.EventType) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.Event{
		Type:        t,
		JobID:       job.ID,
		Attempt:     job.Attempt,
		TotalScenes: job.TotalScenes,
	})
}

// normalize fills defaults and rejects requests the pipeline cannot run
func (s *Job) normalize(input models.JobInput) (models.JobInput, error) {
	if len(input.Scenes) == 0 {
		return input, invalid("scenes", "at least one scene is required")
	}
	if len(input.Scenes) > s.limits.MaxScenes {
		return input, invalid("scenes", "at most %d scenes are allowed", s.limits.MaxScenes)
	}

	input.VoiceID = strings.TrimSpace(input.VoiceID)
	if input.VoiceID == "" {
		input.VoiceID = s.limits.DefaultVoice
	}
	if input.VoiceID == "" {
		return input, invalid("voice_id", "a voice is required")
	}

	switch input.AspectRatio {
	case "":
		input.AspectRatio = models.AspectRatioPortrait
	case models.AspectRatioPortrait, models.AspectRatioLandscape, models.AspectRatioSquare:
	default:
		return input, invalid("aspect_ratio", "unsupported aspect ratio %q", input.AspectRatio)
	}

	input.IdentityImageURL = strings.TrimSpace(input.IdentityImageURL)
	scenes := make([]models.SceneRequest, len(input.Scenes))
	for i, scene := range input.Scenes {
		field := fmt.Sprintf("scenes[%d]", i)

		scene.Text = strings.TrimSpace(scene.Text)
		if scene.Text == "" {
			return input, invalid(field+".text", "narration text is required")
		}

		kind, err := models.ParseSceneKind(string(scene.Kind))
		if err != nil {
			return input, invalid(field+".kind", "%v", err)
		}
		scene.Kind = kind

		switch kind {
		case models.SceneKindTalkingHead:
			if input.IdentityImageURL == "" {
				return input, invalid("identity_image_url", "required by talking head scene %d", i+1)
			}
		case models.SceneKindStaticAsset:
			if scene.AssetURL != "" || input.IdentityImageURL != "" {
				break
			}
			if scene.ImagePrompt == "" {
				return input, invalid(field+".asset_url", "an asset, an image prompt or an identity image is required")
			}
			if !s.limits.ImageEnabled {
				return input, invalid(field+".image_prompt", "image generation is not available, provide an asset or an identity image")
			}
		}
		scenes[i] = scene
	}
	input.Scenes = scenes

	if !input.CaptionsEnabled {
		input.WordCaptions = false
	}
	return input, nil
}

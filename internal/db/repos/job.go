package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/celestiaorg/reelcast/internal/db/models"
)

var (
	// ErrNotFound is returned when no job matches the query
	ErrNotFound = errors.New("job not found")
	// ErrConflict is returned when a compare-and-set lost against another writer
	ErrConflict = errors.New("job was modified concurrently")
)

// JobRepository handles database operations for render jobs
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new instance of JobRepository
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{
		db: db,
	}
}

// Create creates a new job in the database
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by ID from the database
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Where(models.JobIDField+" = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return &job, nil
}

// List retrieves jobs ordered by creation time, newest first
func (r *JobRepository) List(ctx context.Context, opts *models.ListOptions) ([]models.Job, error) {
	var jobs []models.Job
	query := r.db.WithContext(ctx).Order(models.JobCreatedAtField + " DESC")
	if opts != nil {
		if opts.Status != nil {
			query = query.Where(models.JobStatusField+" = ?", *opts.Status)
		}
		limit := opts.Limit
		if limit <= 0 {
			limit = models.DefaultLimit
		}
		query = query.Limit(limit).Offset(opts.Offset)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Count returns the number of jobs matching the status filter of opts
func (r *JobRepository) Count(ctx context.Context, opts *models.ListOptions) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Job{})
	if opts != nil && opts.Status != nil {
		query = query.Where(models.JobStatusField+" = ?", *opts.Status)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// CompareAndSet writes every mutable field of job, provided the stored row
// still carries expectedVersion. On success job.Version is bumped; when
// another writer got there first ErrConflict is returned and nothing is
// written.
func (r *JobRepository) CompareAndSet(ctx context.Context, job *models.Job, expectedVersion uint) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where(models.JobIDField+" = ? AND "+models.JobVersionField+" = ?", job.ID, expectedVersion).
		Updates(map[string]interface{}{
			models.JobVersionField:           expectedVersion + 1,
			models.JobStatusField:            job.Status,
			models.JobCurrentSceneIndexField: job.CurrentSceneIndex,
			models.JobCompletedScenesField:   job.CompletedScenes,
			models.JobNarrationCacheField:    job.NarrationCache,
			models.JobPendingKindField:       job.Pending.Kind,
			models.JobPendingHandleField:     job.Pending.Handle,
			models.JobPendingSceneIndexField: job.Pending.SceneIndex,
			models.JobPendingStartedAtField:  job.Pending.StartedAt,
			models.JobProgressPercentField:   job.ProgressPercent,
			models.JobProgressMessageField:   job.ProgressMessage,
			models.JobResultVideoURLField:    job.ResultVideoURL,
			models.JobResultDurationField:    job.ResultDuration,
			models.JobErrorMessageField:      job.ErrorMessage,
			models.JobAttemptField:           job.Attempt,
			models.JobUpdatedAtField:         now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	job.Version = expectedVersion + 1
	job.UpdatedAt = now
	return nil
}

// FindByPendingHandle maps a vendor handle back to the job waiting on it
func (r *JobRepository) FindByPendingHandle(ctx context.Context, kind models.OperationKind, handle string) (*models.Job, error) {
	if handle == "" {
		return nil, ErrNotFound
	}
	var job models.Job
	err := r.db.WithContext(ctx).
		Where(models.JobPendingHandleField+" = ? AND "+models.JobPendingKindField+" = ?", handle, kind).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job by handle %s: %w", handle, err)
	}
	return &job, nil
}

// ListStale returns pending and processing jobs that have not been updated
// since before the given time, oldest first
func (r *JobRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = models.DefaultLimit
	}
	var jobs []models.Job
	err := r.db.WithContext(ctx).
		Where(models.JobStatusField+" IN ? AND "+models.JobUpdatedAtField+" < ?",
			[]models.JobStatus{models.JobStatusPending, models.JobStatusProcessing}, before.UTC()).
		Order(models.JobUpdatedAtField + " ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	return jobs, nil
}

package handlers

import (
	"errors"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/db/repos"
	"github.com/celestiaorg/reelcast/internal/logger"
	"github.com/celestiaorg/reelcast/internal/pipeline"
	"github.com/celestiaorg/reelcast/internal/services"
	"github.com/celestiaorg/reelcast/pkg/types"
)

// JobHandler handles HTTP requests for render jobs
type JobHandler struct {
	jobs   JobService
	driver Driver
}

// NewJobHandler creates a new job handler instance
func NewJobHandler(jobs JobService, driver Driver) *JobHandler {
	return &JobHandler{
		jobs:   jobs,
		driver: driver,
	}
}

// CreateJob accepts a render request and schedules it
func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	var req types.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidReqBody))
	}

	job, err := h.jobs.Create(c.Context(), req)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(verr.Error()))
		}
		logger.Errorf("%s: %v", ErrMsgJobCreateFailed, err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrServer(ErrMsgJobCreateFailed))
	}

	return c.Status(fiber.StatusCreated).JSON(types.Success(types.CreateJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	}))
}

// GetJob returns the progress report of a job
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgJobIDRequired))
	}

	job, err := h.jobs.Get(c.Context(), id)
	if err != nil {
		return jobError(c, err, ErrMsgJobGetFailed)
	}
	return c.JSON(types.Success(pipeline.Report(job)))
}

// ListJobs returns a page of progress reports, optionally filtered by status
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgNegativePagination))
	}
	opts := getPaginationOptions(page)

	if statusStr := c.Query("status"); statusStr != "" {
		status, err := models.ParseJobStatus(statusStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgJobStatusInvalid))
		}
		opts.Status = &status
	}

	jobs, total, err := h.jobs.List(c.Context(), opts)
	if err != nil {
		logger.Errorf("%s: %v", ErrMsgJobListFailed, err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrServer(ErrMsgJobListFailed))
	}

	rows := make([]types.JobReport, len(jobs))
	for i := range jobs {
		rows[i] = pipeline.Report(&jobs[i])
	}
	return c.JSON(types.Success(types.ListResponse[types.JobReport]{
		Rows: rows,
		Pagination: types.PaginationResponse{
			Total:  int(total),
			Page:   page,
			Limit:  opts.Limit,
			Offset: opts.Offset,
		},
	}))
}

// AdvanceJob runs one pipeline invocation. It is the target of triggers.
func (h *JobHandler) AdvanceJob(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgJobIDRequired))
	}

	outcome, err := h.driver.Advance(c.Context(), id)
	if err != nil {
		return jobError(c, err, ErrMsgJobAdvanceFailed)
	}
	return c.JSON(types.Success(types.AdvanceResponse{JobID: id, Outcome: outcome}))
}

// RetryJob resumes a failed job at its scene cursor
func (h *JobHandler) RetryJob(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgJobIDRequired))
	}

	job, err := h.jobs.Retry(c.Context(), id)
	if err != nil {
		return jobError(c, err, ErrMsgJobRetryFailed)
	}
	return c.Status(fiber.StatusAccepted).JSON(types.Success(pipeline.Report(job)))
}

// RestartJob starts a new job from the request of an existing one
func (h *JobHandler) RestartJob(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgJobIDRequired))
	}

	job, err := h.jobs.Restart(c.Context(), id)
	if err != nil {
		return jobError(c, err, ErrMsgJobRestartFailed)
	}
	return c.Status(fiber.StatusCreated).JSON(types.Success(types.CreateJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	}))
}

// jobError maps service errors to responses
func jobError(c *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, repos.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(types.ErrNotFound(ErrMsgJobNotFound))
	case errors.Is(err, pipeline.ErrNotRetryable):
		return c.Status(fiber.StatusConflict).JSON(types.ErrConflict(err.Error()))
	default:
		logger.Errorf("%s: %v", msg, err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrServer(msg))
	}
}

// Package handlers provides HTTP request handling
package handlers

// Common error messages
const (
	ErrMsgInvalidReqBody = "Invalid request body"
	ErrMsgJobIDRequired  = "Job id is required"
)

// Job error messages
const (
	ErrMsgJobNotFound      = "Job not found"
	ErrMsgJobCreateFailed  = "Failed to create job"
	ErrMsgJobGetFailed     = "Failed to get job"
	ErrMsgJobListFailed    = "Failed to list jobs"
	ErrMsgJobAdvanceFailed = "Failed to advance job"
	ErrMsgJobRetryFailed   = "Failed to retry job"
	ErrMsgJobRestartFailed = "Failed to restart job"
	ErrMsgJobStatusInvalid = "Invalid job status"
)

// Webhook error messages
const (
	ErrMsgUnknownOperation = "Unknown operation"
	ErrMsgWebhookFailed    = "Failed to apply webhook"
	ErrMsgHandleRequired   = "Operation id is required"
)

// Pagination error messages
const (
	ErrMsgNegativePagination = "Page must be a positive number from 1"
)

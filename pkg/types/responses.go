// Package types contains the public request and response shapes of the API
package types

// Slug is a type for the slug field in the response
// It is mainly used for the client to understand the type of the response
type Slug string

// Response slugs
const (
	SuccessSlug      Slug = "success"
	ErrorSlug        Slug = "error"
	InvalidInputSlug Slug = "invalid-input"
	NotFoundSlug     Slug = "not-found"
	ConflictSlug     Slug = "conflict"
	UnauthorizedSlug Slug = "unauthorized"
	ServerErrorSlug  Slug = "server-error"
)

// SlugResponse is the response envelope of every endpoint
type SlugResponse struct {
	Slug  Slug        `json:"slug"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// ErrInvalidInput returns a SlugResponse with the InvalidInputSlug and the error message
func ErrInvalidInput(msg string) SlugResponse {
	return SlugResponse{Slug: InvalidInputSlug, Error: msg}
}

// ErrNotFound returns a SlugResponse with the NotFoundSlug and the error message
func ErrNotFound(msg string) SlugResponse {
	return SlugResponse{Slug: NotFoundSlug, Error: msg}
}

// ErrConflict returns a SlugResponse with the ConflictSlug and the error message
func ErrConflict(msg string) SlugResponse {
	return SlugResponse{Slug: ConflictSlug, Error: msg}
}

// ErrUnauthorized returns a SlugResponse with the UnauthorizedSlug and the error message
func ErrUnauthorized(msg string) SlugResponse {
	return SlugResponse{Slug: UnauthorizedSlug, Error: msg}
}

// ErrServer returns a SlugResponse with the ServerErrorSlug and the error message
func ErrServer(msg string) SlugResponse {
	return SlugResponse{Slug: ServerErrorSlug, Error: msg}
}

// Success returns a SlugResponse with the SuccessSlug and the data
func Success(data interface{}) SlugResponse {
	return SlugResponse{Slug: SuccessSlug, Data: data}
}

// PaginationResponse represents pagination information for list endpoints
type PaginationResponse struct {
	// Total number of items available across all pages
	Total int `json:"total"`
	// Current page number (1-based)
	Page int `json:"page"`
	// Maximum number of items per page
	Limit int `json:"limit"`
	// Number of items skipped from the beginning of the result set
	Offset int `json:"offset"`
}

// ListResponse defines a generic response structure for listing resources
type ListResponse[T any] struct {
	Rows       []T                `json:"rows"`
	Pagination PaginationResponse `json:"pagination"`
}

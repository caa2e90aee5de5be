// Package routes defines the API routes and URL structure
package routes

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/celestiaorg/reelcast/pkg/api/v1/handlers"
	"github.com/celestiaorg/reelcast/pkg/api/v1/middleware"
)

/*

To keep this file organized, routes should be organized in the following way:

1. Smallest scope first (i.e. health before job routes)
2. For similar scopes, put the endpoints in alphabetical order
3. Order routes in GET, POST, PUT, DELETE order.
	a. Within this ordering, param urls (ie /:id) should go last, otherwise fiber will interpret the route slug as that param.
	b. After param considerations, order alphabetically.
4. For clarity, naming should match the action (i.e. GetJob, RetryJob)

*/

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIv1Prefix is the prefix for all API endpoints
	APIv1Prefix = "/api/v1"
	// WebhookPrefix is where vendors deliver operation results
	WebhookPrefix = APIv1Prefix + "/webhooks"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Route names for lookup
const (
	// Health check
	HealthCheck = "HealthCheck"
	// Metrics
	Metrics = "Metrics"

	// Job routes
	GetJobs    = "GetJobs"
	GetJob     = "GetJob"
	CreateJob  = "CreateJob"
	AdvanceJob = "AdvanceJob"
	RestartJob = "RestartJob"
	RetryJob   = "RetryJob"

	// Webhook routes
	Webhook = "Webhook"
)

// Config carries what RegisterRoutes needs besides the handlers
type Config struct {
	// TriggerToken protects the advance endpoint; empty disables the check
	TriggerToken string
	// Metrics serves the prometheus scrape endpoint when set
	Metrics http.Handler
}

// routeCache stores extracted routes for use prior to compilation
var (
	routeCache     map[string]string
	routeCacheMu   sync.RWMutex
	routeCacheInit sync.Once
)

// RegisterRoutes configures all the v1 routes
//
// NOTE: route ordering is important because routes will try and match in the order they are registered.
func RegisterRoutes(
	app *fiber.App,
	jobHandler *handlers.JobHandler,
	webhookHandler *handlers.WebhookHandler,
	cfg Config,
) {
	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	}).Name(HealthCheck)

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics)).Name(Metrics)
	}

	// API v1 routes
	v1 := app.Group(APIv1Prefix)

	// Jobs endpoints
	jobs := v1.Group("/jobs")
	jobs.Get("/", jobHandler.ListJobs).Name(GetJobs)
	jobs.Get("/:id", jobHandler.GetJob).Name(GetJob)
	jobs.Post("/", jobHandler.CreateJob).Name(CreateJob)
	jobs.Post("/:id/advance", middleware.RequireInternalAuth(cfg.TriggerToken), jobHandler.AdvanceJob).Name(AdvanceJob)
	jobs.Post("/:id/restart", jobHandler.RestartJob).Name(RestartJob)
	jobs.Post("/:id/retry", jobHandler.RetryJob).Name(RetryJob)

	// Vendor webhooks
	v1.Post("/webhooks/:operation", webhookHandler.HandleWebhook).Name(Webhook)
}

// initRouteCache initializes the route cache by creating a mock app and extracting routes
func initRouteCache() {
	routeCacheInit.Do(func() {
		routeCacheMu.Lock()
		defer routeCacheMu.Unlock()

		routeCache = make(map[string]string)

		// Create a mock app
		app := fiber.New()

		// Register routes with empty handlers
		RegisterRoutes(app, &handlers.JobHandler{}, &handlers.WebhookHandler{}, Config{Metrics: http.NotFoundHandler()})

		// Extract routes from the app
		for _, route := range app.GetRoutes() {
			if route.Name != "" {
				routeCache[route.Name] = route.Path
			}
		}
	})
}

// GetRoute returns the route pattern for the given route name
func GetRoute(name string) string {
	initRouteCache()

	routeCacheMu.RLock()
	defer routeCacheMu.RUnlock()
	return routeCache[name]
}

// BuildURL builds a URL for the given route name and parameters
func BuildURL(routeName string, params map[string]string, queryParams url.Values) string {
	route := GetRoute(routeName)
	if route == "" {
		return ""
	}

	// Replace parameters in the route
	for param, value := range params {
		route = strings.ReplaceAll(route, ":"+param, value)
	}

	// Remove trailing slash if it's a base endpoint with no parameters
	if strings.HasSuffix(route, "/") && !strings.Contains(route, ":") {
		route = strings.TrimSuffix(route, "/")
	}

	// Add query parameters if any
	if len(queryParams) > 0 {
		route = fmt.Sprintf("%s?%s", route, queryParams.Encode())
	}

	return route
}

// Health check route helper

// HealthCheckURL returns the URL for the health check endpoint
func HealthCheckURL() string {
	return BuildURL(HealthCheck, nil, nil)
}

// MetricsURL returns the URL of the prometheus scrape endpoint
func MetricsURL() string {
	return BuildURL(Metrics, nil, nil)
}

// Job route helpers

// GetJobsURL returns the URL for listing jobs
func GetJobsURL(queryParams url.Values) string {
	return BuildURL(GetJobs, nil, queryParams)
}

// GetJobURL returns the URL for getting a job by ID
func GetJobURL(id string) string {
	return BuildURL(GetJob, map[string]string{"id": id}, nil)
}

// CreateJobURL returns the URL for creating a job
func CreateJobURL() string {
	return BuildURL(CreateJob, nil, nil)
}

// AdvanceJobURL returns the URL that runs one invocation of a job
func AdvanceJobURL(id string) string {
	return BuildURL(AdvanceJob, map[string]string{"id": id}, nil)
}

// RestartJobURL returns the URL for restarting a job
func RestartJobURL(id string) string {
	return BuildURL(RestartJob, map[string]string{"id": id}, nil)
}

// RetryJobURL returns the URL for retrying a failed job
func RetryJobURL(id string) string {
	return BuildURL(RetryJob, map[string]string{"id": id}, nil)
}

// Webhook route helper

// WebhookURL returns the URL vendors deliver results of an operation slug to
func WebhookURL(slug string) string {
	return BuildURL(Webhook, map[string]string{"operation": slug}, nil)
}

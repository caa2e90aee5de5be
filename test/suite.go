package test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/celestiaorg/reelcast/internal/app"
	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/config"
	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/db/repos"
	"github.com/celestiaorg/reelcast/internal/pipeline"
	"github.com/celestiaorg/reelcast/pkg/api/v1/client"
	"github.com/celestiaorg/reelcast/pkg/api/v1/routes"
	"github.com/celestiaorg/reelcast/test/mocks"
)

// DefaultTestTimeout is the default timeout for test suites.
const DefaultTestTimeout = 30 * time.Second

// Suite encapsulates all components needed for integration testing.
// It provides a complete test setup with:
//   - In-memory database
//   - Real API server
//   - Real API client
//   - Mocked vendors
type Suite struct {
	t *testing.T // The testing.T instance for this suite

	// Server components
	Config  config.Config
	Service *app.Server
	Server  *httptest.Server

	// Client components
	APIClient client.Client

	// Database components
	DB         *gorm.DB
	JobRepo    *repos.JobRepository
	CreditRepo *repos.CreditRepository

	// Mock vendors
	Vendors *mocks.Vendors

	// handler is swapped in once the service exists, so the server URL can be
	// part of the service configuration
	handlerMu sync.RWMutex
	handler   http.Handler

	// Context management
	ctx        context.Context
	cancelFunc context.CancelFunc

	// Cleanup function
	cleanup     func()
	cleanupOnce sync.Once
}

// Option configures a suite before its server is assembled
type Option func(*Suite)

// WithDriverMode selects how jobs are advanced
func WithDriverMode(mode string) Option {
	return func(s *Suite) {
		s.Config.Pipeline.DriverMode = mode
	}
}

// WithSelfTrigger makes every unit of work run in its own advance request
func WithSelfTrigger() Option {
	return func(s *Suite) {
		s.Config.Pipeline.SelfTrigger = true
	}
}

// WithTriggerToken protects the advance endpoint
func WithTriggerToken(token string) Option {
	return func(s *Suite) {
		s.Config.TriggerToken = token
	}
}

// WithTimeout returns an option that sets the suite timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Suite) {
		if s.cancelFunc != nil {
			s.cancelFunc()
		}
		s.ctx, s.cancelFunc = context.WithTimeout(context.Background(), timeout)
	}
}

// TestConfig returns a configuration tuned for fast tests
func TestConfig() config.Config {
	cfg := config.Default()
	cfg.ListenAddr = ""
	cfg.Pipeline.PollInterval = time.Millisecond
	cfg.Pipeline.PollBudget = 2 * time.Second
	cfg.Pipeline.AbandonGrace = 50 * time.Millisecond
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.SweepInterval = time.Hour
	cfg.Pipeline.MaxScenes = 5
	cfg.Pipeline.DefaultVoice = "narrator"
	cfg.Pipeline.DefaultMusicTrack = "https://cdn.example.com/music/default.mp3"
	return cfg
}

// NewSuite creates a new test suite with the given options.
// The suite must be cleaned up after use by calling Cleanup.
func NewSuite(t *testing.T, opts ...Option) *Suite {
	t.Helper()

	// Create suite with default timeout
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)

	suite := &Suite{
		t:          t,
		Config:     TestConfig(),
		Vendors:    mocks.NewVendors(),
		ctx:        ctx,
		cancelFunc: cancel,
	}

	// Initialize cleanup function
	suite.cleanup = func() {
		if suite.cancelFunc != nil {
			suite.cancelFunc()
		}
		if suite.Server != nil {
			suite.Server.Close()
		}
		if suite.Service != nil {
			if err := suite.Service.Shutdown(); err != nil {
				t.Logf("shutdown: %v", err)
			}
		}
	}

	for _, opt := range opts {
		opt(suite)
	}

	SetupTestDB(suite)
	SetupServer(suite)

	return suite
}

// Cleanup tears down the test suite, releasing all resources.
// This should be deferred immediately after creating the suite.
func (s *Suite) Cleanup() {
	s.cleanupOnce.Do(func() {
		if s.cleanup != nil {
			s.cleanup()
		}
	})
}

// T returns the testing.T instance for this suite
func (s *Suite) T() *testing.T {
	return s.t
}

// Context returns the suite's context, which is automatically
// canceled when the suite is cleaned up.
func (s *Suite) Context() context.Context {
	return s.ctx
}

// Require returns a require.Assertions instance for this suite.
// This is a convenience method to avoid passing t around.
func (s *Suite) Require() *require.Assertions {
	return require.New(s.t)
}

// Retry retries a function until it succeeds or the number of retries is reached.
func (s *Suite) Retry(fn func() error, retries int, interval time.Duration) (err error) {
	for i := 0; i < retries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		time.Sleep(interval)
	}
	return
}

// WaitForStatus polls the job through the API until it reaches status
func (s *Suite) WaitForStatus(jobID string, status models.JobStatus) {
	s.t.Helper()
	err := s.Retry(func() error {
		report, err := s.APIClient.GetJob(s.ctx, jobID)
		if err != nil {
			return err
		}
		if report.Status != status {
			return fmt.Errorf("job %s is %s (%d%%, %s), want %s",
				jobID, report.Status, report.ProgressPercent, report.ErrorMessage, status)
		}
		return nil
	}, 500, 10*time.Millisecond)
	s.Require().NoError(err)
}

// Job reads a job straight from the database
func (s *Suite) Job(id string) *models.Job {
	s.t.Helper()
	job, err := s.JobRepo.GetByID(s.ctx, id)
	s.Require().NoError(err)
	return job
}

// WaitForPending waits until the job is parked on a submitted operation of
// kind and returns its handle
func (s *Suite) WaitForPending(jobID string, kind models.OperationKind) capability.Handle {
	s.t.Helper()
	var handle capability.Handle
	err := s.Retry(func() error {
		job := s.Job(jobID)
		if job.Pending.Kind != kind || job.Pending.Handle == "" {
			return fmt.Errorf("job %s is waiting on %q, want %s", jobID, job.Pending.Kind, kind)
		}
		handle = capability.Handle(job.Pending.Handle)
		return nil
	}, 500, 10*time.Millisecond)
	s.Require().NoError(err)
	return handle
}

// DeliverWebhook posts a vendor completion document to the webhook endpoint
// of kind, the way the vendor would, and returns the response status
func (s *Suite) DeliverWebhook(kind models.OperationKind, raw capability.RawResult) int {
	s.t.Helper()
	agent := fiber.Post(s.Server.URL + routes.WebhookURL(pipeline.CallbackSlug(kind)))
	agent.Timeout(testClientTimeout)
	agent.JSON(raw)
	status, _, errs := agent.Bytes()
	s.Require().Empty(errs)
	return status
}

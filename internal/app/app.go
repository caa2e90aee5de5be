// Package app wires the configuration, storage, pipeline and HTTP surface
// into a runnable server
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/config"
	"github.com/celestiaorg/reelcast/internal/db/repos"
	"github.com/celestiaorg/reelcast/internal/driver"
	"github.com/celestiaorg/reelcast/internal/events"
	"github.com/celestiaorg/reelcast/internal/logger"
	"github.com/celestiaorg/reelcast/internal/metrics"
	"github.com/celestiaorg/reelcast/internal/pipeline"
	"github.com/celestiaorg/reelcast/internal/services"
	"github.com/celestiaorg/reelcast/pkg/api/v1/handlers"
	"github.com/celestiaorg/reelcast/pkg/api/v1/routes"
	"github.com/celestiaorg/reelcast/pkg/types"
)

// ShutdownTimeout bounds how long in-flight requests may take on shutdown
const ShutdownTimeout = 10 * time.Second

// Server is the assembled service
type Server struct {
	Config   config.Config
	App      *fiber.App
	Jobs     *services.Job
	Credits  *services.Credits
	Pipeline *pipeline.Pipeline
	Driver   *driver.Driver
	Bus      *events.Bus

	jobRepo         *repos.JobRepository
	trigger         driver.Trigger
	queue           *driver.LocalTrigger
	selfTrigger     *driver.HTTPTrigger
	metricsShutdown func(context.Context) error
	wg              sync.WaitGroup
}

// New assembles a server from its configuration, a database and the vendor
// capabilities
func New(cfg config.Config, db *gorm.DB, caps capability.Set) (*Server, error) {
	s := &Server{
		Config:  cfg,
		Bus:     events.NewBus(),
		jobRepo: repos.NewJobRepository(db),
	}

	s.Pipeline = pipeline.New(s.jobRepo, caps, s.Bus, pipeline.Options{
		PollBudget:        cfg.Pipeline.PollBudget,
		PollInterval:      cfg.Pipeline.PollInterval,
		AbandonGrace:      cfg.Pipeline.AbandonGrace,
		Callbacks:         cfg.Pipeline.DriverMode == config.DriverCallback,
		CallbackBaseURL:   cfg.PublicBaseURL + routes.WebhookPrefix,
		DefaultMusicTrack: cfg.Pipeline.DefaultMusicTrack,
	})

	if cfg.Pipeline.SelfTrigger {
		s.selfTrigger = driver.NewHTTPTrigger(cfg.PublicBaseURL, cfg.TriggerToken, cfg.Pipeline.PollBudget+cfg.Pipeline.AbandonGrace)
		s.trigger = s.selfTrigger
	} else {
		s.queue = driver.NewLocalTrigger(driver.DefaultQueueSize)
		s.trigger = s.queue
	}

	var err error
	if s.Driver, err = driver.New(cfg.Pipeline.DriverMode, s.Pipeline, s.trigger); err != nil {
		return nil, err
	}

	s.Jobs = services.NewJobService(s.jobRepo, s.Pipeline, s.Driver, s.Bus, services.JobLimits{
		MaxScenes:    cfg.Pipeline.MaxScenes,
		DefaultVoice: cfg.Pipeline.DefaultVoice,
		ImageEnabled: caps.Image != nil,
	})
	s.Credits = services.NewCreditsService(repos.NewCreditRepository(db))
	s.Credits.Subscribe(s.Bus)

	metricsHandler, meterProvider, err := metrics.InitMetrics()
	if err != nil {
		return nil, err
	}
	s.metricsShutdown = meterProvider.Shutdown
	recorder, err := metrics.NewRecorder(meterProvider)
	if err != nil {
		return nil, err
	}
	recorder.Subscribe(s.Bus)

	s.App = fiber.New(fiber.Config{
		AppName:      "reelcast",
		ErrorHandler: errorHandler,
	})
	s.App.Use(recover.New())
	s.App.Use(logger.APILogger())

	routes.RegisterRoutes(
		s.App,
		handlers.NewJobHandler(s.Jobs, s.Driver),
		handlers.NewWebhookHandler(s.Driver),
		routes.Config{TriggerToken: cfg.TriggerToken, Metrics: metricsHandler},
	)

	logger.InfoWithFields("Server assembled", map[string]interface{}{
		"driver_mode":  cfg.Pipeline.DriverMode,
		"self_trigger": cfg.Pipeline.SelfTrigger,
		"workers":      cfg.Pipeline.Workers,
	})
	return s, nil
}

// Start launches the event bus, the local workers and the sweeper. They stop
// when ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	s.Bus.Start(ctx)

	if s.queue != nil {
		for i := 0; i < s.Config.Pipeline.Workers; i++ {
			s.wg.Add(1)
			go driver.LaunchWorker(ctx, &s.wg, i, s.queue, s.Driver)
		}
	}

	s.wg.Add(1)
	go driver.LaunchSweeper(ctx, &s.wg, s.jobRepo, s.trigger, driver.SweepOptions{
		Interval:   s.Config.Pipeline.SweepInterval,
		StaleAfter: s.Config.Pipeline.StaleAfter,
	})
}

// Run serves HTTP on the configured address until ctx is cancelled or the
// listener fails, then shuts everything down
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	s.Start(ctx)

	g.Go(func() error {
		logger.Infof("Starting server on %s", s.Config.ListenAddr)
		if err := s.App.Listen(s.Config.ListenAddr); err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.Shutdown()
	})
	return g.Wait()
}

// Shutdown stops accepting requests and waits for the background loops.
// The context passed to Start must already be cancelled.
func (s *Server) Shutdown() error {
	logger.Info("Shutting down server...")
	var errs []error
	if err := s.App.ShutdownWithTimeout(ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown http server: %w", err))
	}

	s.wg.Wait()
	if s.selfTrigger != nil {
		s.selfTrigger.Wait()
	}

	if err := s.metricsShutdown(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown metrics: %w", err))
	}
	logger.Info("Server exited properly")
	return errors.Join(errs...)
}

// errorHandler renders errors that escaped a handler in the API envelope
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	if code >= fiber.StatusInternalServerError {
		return c.Status(code).JSON(types.ErrServer(err.Error()))
	}
	if code == fiber.StatusNotFound {
		return c.Status(code).JSON(types.ErrNotFound(err.Error()))
	}
	return c.Status(code).JSON(types.SlugResponse{Slug: types.ErrorSlug, Error: err.Error()})
}

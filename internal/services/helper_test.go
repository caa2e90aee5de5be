package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/db/repos"
	"github.com/celestiaorg/reelcast/internal/events"
	"github.com/celestiaorg/reelcast/internal/pipeline"
	"github.com/celestiaorg/reelcast/test/mocks"
)

// TestSetup holds the shared test setup
type TestSetup struct {
	DB         *gorm.DB
	JobRepo    *repos.JobRepository
	CreditRepo *repos.CreditRepository
	Vendors    *mocks.Vendors
	Pipeline   *pipeline.Pipeline
	Kicker     *recordingKicker
	Publisher  *recordingPublisher
	JobService *Job
	ctx        context.Context
}

// NewTestSetup creates a new test setup backed by an in-memory database
func NewTestSetup(t *testing.T) *TestSetup {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err, "Failed to create in-memory database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Job{}, &models.CreditEntry{}), "Failed to run migrations")

	jobRepo := repos.NewJobRepository(db)
	vendors := mocks.NewVendors()
	publisher := &recordingPublisher{}
	p := pipeline.New(jobRepo, vendors.Set(), publisher, pipeline.Options{
		PollBudget:   time.Second,
		PollInterval: time.Millisecond,
	})
	kicker := &recordingKicker{}

	return &TestSetup{
		DB:         db,
		JobRepo:    jobRepo,
		CreditRepo: repos.NewCreditRepository(db),
		Vendors:    vendors,
		Pipeline:   p,
		Kicker:     kicker,
		Publisher:  publisher,
		JobService: NewJobService(jobRepo, p, kicker, publisher, JobLimits{MaxScenes: 3, DefaultVoice: "narrator", ImageEnabled: true}),
		ctx:        context.Background(),
	}
}

// CleanUp cleans up resources after test
func (ts *TestSetup) CleanUp() {
	sqlDB, err := ts.DB.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}

type recordingKicker struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (k *recordingKicker) Kick(_ context.Context, id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ids = append(k.ids, id)
	return k.err
}

func (k *recordingKicker) kicked() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.ids...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

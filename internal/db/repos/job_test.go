package repos

import (
	"sync"
	"time"

	"github.com/celestiaorg/reelcast/internal/db/models"
)

type JobRepositoryTestSuite struct {
	DBRepositoryTestSuite
}

func (s *JobRepositoryTestSuite) TestCreateAndGet() {
	job := s.createTestJob()
	s.NotEmpty(job.ID)

	got, err := s.jobRepo.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusPending, got.Status)
	s.Equal(2, got.TotalScenes)
	s.Equal(0, got.CurrentSceneIndex)
	s.Empty(got.CompletedScenes)
	s.True(got.Pending.IsEmpty())
	s.Nil(got.Narration())
	s.Equal("voice-1", got.Params().VoiceID)
	s.Len(got.Params().Scenes, 2)
}

func (s *JobRepositoryTestSuite) TestGetByID_NotFound() {
	_, err := s.jobRepo.GetByID(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *JobRepositoryTestSuite) TestCompareAndSet() {
	job := s.createTestJob()
	version := job.Version

	started := time.Now().UTC()
	job.Status = models.JobStatusProcessing
	job.Pending = models.PendingOperation{
		Kind:       models.OperationTalkingHead,
		Handle:     "th-123",
		SceneIndex: 0,
		StartedAt:  &started,
	}
	job.SetNarration(&models.NarrationResult{SceneIndex: 0, AudioURL: "a.mp3", DurationSeconds: 3.2})
	s.Require().NoError(s.jobRepo.CompareAndSet(s.ctx, job, version))
	s.Equal(version+1, job.Version)

	got, err := s.jobRepo.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusProcessing, got.Status)
	s.Equal(models.OperationTalkingHead, got.Pending.Kind)
	s.Equal("th-123", got.Pending.Handle)
	s.Require().NotNil(got.Pending.StartedAt)
	s.Require().NotNil(got.Narration())
	s.Equal(3.2, got.Narration().DurationSeconds)

	// A writer holding the old version loses
	stale := *got
	stale.ProgressMessage = "stale"
	s.ErrorIs(s.jobRepo.CompareAndSet(s.ctx, &stale, version), ErrConflict)

	// Clearing the slot writes zero values
	got.Pending = models.PendingOperation{}
	got.SetNarration(nil)
	got.CompletedScenes = append(got.CompletedScenes, models.SceneResult{Index: 0, Kind: models.SceneKindTalkingHead, ClipURL: "c.mp4", DurationSeconds: 3.2})
	got.CurrentSceneIndex = 1
	s.Require().NoError(s.jobRepo.CompareAndSet(s.ctx, got, got.Version))

	again, err := s.jobRepo.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.True(again.Pending.IsEmpty())
	s.Empty(again.Pending.Handle)
	s.Nil(again.Pending.StartedAt)
	s.Nil(again.Narration())
	s.Len(again.CompletedScenes, 1)
	s.Equal(1, again.CurrentSceneIndex)
	s.Equal(version+2, again.Version)
}

func (s *JobRepositoryTestSuite) TestCompareAndSet_OneWinner() {
	job := s.createTestJob()

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			copyJob := *job
			copyJob.ProgressPercent = i
			err := s.jobRepo.CompareAndSet(s.ctx, &copyJob, job.Version)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if err == ErrConflict {
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(writers-1, conflicts)
}

func (s *JobRepositoryTestSuite) TestFindByPendingHandle() {
	job := s.createTestJob()
	job.Status = models.JobStatusProcessing
	job.CurrentSceneIndex = 2
	job.Pending = models.PendingOperation{Kind: models.OperationRender, Handle: "render-9", SceneIndex: 2}
	s.Require().NoError(s.jobRepo.CompareAndSet(s.ctx, job, job.Version))

	got, err := s.jobRepo.FindByPendingHandle(s.ctx, models.OperationRender, "render-9")
	s.Require().NoError(err)
	s.Equal(job.ID, got.ID)

	_, err = s.jobRepo.FindByPendingHandle(s.ctx, models.OperationTalkingHead, "render-9")
	s.ErrorIs(err, ErrNotFound, "kind must match")

	_, err = s.jobRepo.FindByPendingHandle(s.ctx, models.OperationRender, "")
	s.ErrorIs(err, ErrNotFound)
}

func (s *JobRepositoryTestSuite) TestListAndCount() {
	first := s.createTestJob()
	s.createTestJob()
	first.Status = models.JobStatusFailed
	s.Require().NoError(s.jobRepo.CompareAndSet(s.ctx, first, first.Version))

	all, err := s.jobRepo.List(s.ctx, &models.ListOptions{})
	s.Require().NoError(err)
	s.Len(all, 2)

	failed := models.JobStatusFailed
	opts := &models.ListOptions{Status: &failed}
	onlyFailed, err := s.jobRepo.List(s.ctx, opts)
	s.Require().NoError(err)
	s.Require().Len(onlyFailed, 1)
	s.Equal(first.ID, onlyFailed[0].ID)

	count, err := s.jobRepo.Count(s.ctx, opts)
	s.Require().NoError(err)
	s.EqualValues(1, count)

	paged, err := s.jobRepo.List(s.ctx, &models.ListOptions{Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Len(paged, 1)
}

func (s *JobRepositoryTestSuite) TestListStale() {
	job := s.createTestJob()
	job.Status = models.JobStatusProcessing
	s.Require().NoError(s.jobRepo.CompareAndSet(s.ctx, job, job.Version))
	pending := s.createTestJob()
	done := s.createTestJob()
	done.Status = models.JobStatusCompleted
	s.Require().NoError(s.jobRepo.CompareAndSet(s.ctx, done, done.Version))

	stale, err := s.jobRepo.ListStale(s.ctx, time.Now().Add(time.Minute), 10)
	s.Require().NoError(err)
	s.Require().Len(stale, 2)
	ids := []string{stale[0].ID, stale[1].ID}
	s.ElementsMatch([]string{job.ID, pending.ID}, ids)

	fresh, err := s.jobRepo.ListStale(s.ctx, time.Now().Add(-time.Minute), 10)
	s.Require().NoError(err)
	s.Empty(fresh)
}

package repos

import (
	"github.com/celestiaorg/reelcast/internal/db/models"
)

type CreditRepositoryTestSuite struct {
	DBRepositoryTestSuite
}

func (s *CreditRepositoryTestSuite) TestRecordIsIdempotent() {
	job := s.createTestJob()

	created, err := s.creditRepo.Record(s.ctx, &models.CreditEntry{JobID: job.ID, Kind: models.CreditKindCharge, Attempt: 1, Units: 2})
	s.Require().NoError(err)
	s.True(created)

	created, err = s.creditRepo.Record(s.ctx, &models.CreditEntry{JobID: job.ID, Kind: models.CreditKindCharge, Attempt: 1, Units: 2})
	s.Require().NoError(err)
	s.False(created, "same job, kind and attempt is recorded once")

	created, err = s.creditRepo.Record(s.ctx, &models.CreditEntry{JobID: job.ID, Kind: models.CreditKindCharge, Attempt: 2, Units: 2})
	s.Require().NoError(err)
	s.True(created)

	entries, err := s.creditRepo.ListByJob(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(1, entries[0].Attempt)
	s.Equal(2, entries[1].Attempt)
}

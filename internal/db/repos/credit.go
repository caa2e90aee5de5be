package repos

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/celestiaorg/reelcast/internal/db/models"
)

// CreditRepository handles database operations for credit ledger entries
type CreditRepository struct {
	db *gorm.DB
}

// NewCreditRepository creates a new instance of CreditRepository
func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{
		db: db,
	}
}

// Record inserts the entry unless one already exists for the same job, kind
// and attempt. It reports whether a row was written.
func (r *CreditRepository) Record(ctx context.Context, entry *models.CreditEntry) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record %s credit for job %s: %w", entry.Kind, entry.JobID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListByJob returns the ledger entries of a job in insertion order
func (r *CreditRepository) ListByJob(ctx context.Context, jobID string) ([]models.CreditEntry, error) {
	var entries []models.CreditEntry
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list credits for job %s: %w", jobID, err)
	}
	return entries, nil
}

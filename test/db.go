package test

import (
	"github.com/celestiaorg/reelcast/internal/db"
	"github.com/celestiaorg/reelcast/internal/db/repos"
)

// SetupTestDB gives the suite a migrated in-memory sqlite database
func SetupTestDB(suite *Suite) {
	database, err := db.New(db.Options{SQLitePath: "file::memory:", AutoMigrate: true})
	suite.Require().NoError(err, "Failed to create in-memory database")
	suite.DB = database

	oldCleanup := suite.cleanup
	suite.cleanup = func() {
		if oldCleanup != nil {
			oldCleanup()
		}
		if sqlDB, err := suite.DB.DB(); err == nil && sqlDB != nil {
			_ = sqlDB.Close()
		}
	}

	// Initialize repositories
	suite.JobRepo = repos.NewJobRepository(suite.DB)
	suite.CreditRepo = repos.NewCreditRepository(suite.DB)
}

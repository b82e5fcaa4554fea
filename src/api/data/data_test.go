package data

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/satyashodhak/factcheck-api/src/api/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled second connection to ":memory:" would open a separate empty
	// database, so pin the pool to one connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&types.User{},
		&types.VerificationResult{},
		&types.Comment{},
		&types.VerificationVote{},
		&types.CommentVote{},
		&types.Setting{},
	))
	return db
}

func seedResult(t *testing.T, db *gorm.DB, userID string) types.VerificationResult {
	t.Helper()
	record := types.VerificationResult{
		ID:          uuid.NewString(),
		UserID:      userID,
		Claim:       "The Earth is flat.",
		Verdict:     types.VerdictFalse,
		Confidence:  99,
		Explanation: "## Verdict\nIt is not.",
		Sources:     types.SourceList{{Title: "AI Analysis", Snippet: "reasoning", URL: "https://example.org"}},
		IsPublic:    true,
	}
	require.NoError(t, db.Create(&record).Error)
	return record
}

func seedComment(t *testing.T, db *gorm.DB, claimID, userID string) types.Comment {
	t.Helper()
	comment := types.Comment{
		ID:       uuid.NewString(),
		ClaimID:  claimID,
		UserID:   userID,
		Content:  "interesting",
		UserName: "tester",
	}
	require.NoError(t, db.Create(&comment).Error)
	return comment
}

package webserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/satyashodhak/factcheck-api/src/api/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

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

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// authAs stubs the JWT middleware with a fixed caller identity.
func authAs(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid != "" {
			c.Set("uid", uid)
		}
		c.Next()
	}
}

func seedUser(t *testing.T, db *gorm.DB, name string) types.User {
	t.Helper()
	user := types.User{
		ID:    uuid.NewString(),
		Email: name + "@example.org",
		Name:  name,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedResult(t *testing.T, db *gorm.DB, userID string, public bool) types.VerificationResult {
	t.Helper()
	record := types.VerificationResult{
		ID:          uuid.NewString(),
		UserID:      userID,
		Claim:       "The Earth is flat.",
		Verdict:     types.VerdictFalse,
		Confidence:  99,
		Explanation: "## Verdict\nIt is not.",
		Sources:     types.SourceList{{Title: "AI Analysis", Snippet: "reasoning", URL: "https://example.org"}},
		IsPublic:    public,
		IsSaved:     true,
	}
	require.NoError(t, db.Create(&record).Error)
	return record
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

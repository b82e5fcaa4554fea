package webserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/satyashodhak/factcheck-api/src/api/data"
	"github.com/satyashodhak/factcheck-api/src/api/types"
	"gorm.io/gorm"
)

type Results struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewResults(db *gorm.DB, rdb *redis.Client) Results {
	return Results{db: db, rdb: rdb}
}

// Save persists a transient verification result for its owner, with the
// requested visibility.
func (r Results) Save(c *gin.Context) {
	var req struct {
		Claim       string           `json:"claim" binding:"required"`
		Verdict     string           `json:"verdict" binding:"required"`
		Confidence  int              `json:"confidence"`
		Explanation string           `json:"explanation"`
		Sources     types.SourceList `json:"sources"`
		MakePublic  bool             `json:"make_public"`
		Notes       string           `json:"notes"`
		Tags        types.StringList `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if strings.TrimSpace(req.Claim) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "claim is required"})
		return
	}
	if !types.ValidVerdict(req.Verdict) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid verdict"})
		return
	}
	if req.Confidence < 0 || req.Confidence > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "confidence must be between 0 and 100"})
		return
	}
	if len(req.Sources) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "at least one source is required"})
		return
	}

	record := types.VerificationResult{
		ID:          uuid.NewString(),
		UserID:      c.GetString("uid"),
		Claim:       req.Claim,
		Verdict:     req.Verdict,
		Confidence:  req.Confidence,
		Explanation: req.Explanation,
		Sources:     req.Sources,
		IsPublic:    req.MakePublic,
		IsSaved:     true,
		Notes:       req.Notes,
		Tags:        req.Tags,
	}
	if err := r.db.Create(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, record)
}

// SetVisibility flips is_public on an already-saved result. Idempotent;
// touches only the flag and updated_at.
func (r Results) SetVisibility(c *gin.Context) {
	var req struct {
		IsPublic *bool `json:"is_public" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	res := r.db.Model(&types.VerificationResult{}).
		Where("id = ? AND user_id = ?", c.Param("id"), c.GetString("uid")).
		Updates(map[string]interface{}{
			"is_public":  *req.IsPublic,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"err": "result not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_public": *req.IsPublic})
}

// Unsave clears the saved marker. The row is kept so history and public
// sharing survive; Delete is the destructive path.
func (r Results) Unsave(c *gin.Context) {
	res := r.db.Model(&types.VerificationResult{}).
		Where("id = ? AND user_id = ?", c.Param("id"), c.GetString("uid")).
		Updates(map[string]interface{}{
			"is_saved":   false,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"err": "result not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Delete removes a result and its dependent votes and comments. Owner only.
func (r Results) Delete(c *gin.Context) {
	id := c.Param("id")
	uid := c.GetString("uid")

	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, uid).Delete(&types.VerificationResult{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("verification_id = ?", id).Delete(&types.VerificationVote{}).Error; err != nil {
			return err
		}
		var commentIDs []string
		if err := tx.Model(&types.Comment{}).Where("claim_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&types.CommentVote{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("claim_id = ?", id).Delete(&types.Comment{}).Error
	})
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"err": "result not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListMine is the owner's verification history, newest first.
func (r Results) ListMine(c *gin.Context) {
	uid := c.GetString("uid")
	var rows []types.VerificationResult
	if err := r.db.Where("user_id = ?", uid).Order("created_at desc").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	r.respondAnnotated(c, rows, uid)
}

// ListSaved is the owner's saved results.
func (r Results) ListSaved(c *gin.Context) {
	uid := c.GetString("uid")
	var rows []types.VerificationResult
	if err := r.db.Where("user_id = ? AND is_saved = ?", uid, true).Order("updated_at desc").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	r.respondAnnotated(c, rows, uid)
}

// ListPublic is the explore feed. Anonymous callers get no vote annotation.
// ?q= filters claims by substring; ?sort=trending serves the cached activity
// ranking when warm.
func (r Results) ListPublic(c *gin.Context) {
	viewer := c.GetString("uid")
	search := strings.TrimSpace(c.Query("q"))

	if search == "" && c.Query("sort") == "trending" {
		if ids := data.TrendingIDs(c, r.rdb); len(ids) > 0 {
			var rows []types.VerificationResult
			if err := r.db.Where("id IN ? AND is_public = ?", ids, true).Find(&rows).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
				return
			}
			// Restore cache order lost by the IN query.
			byID := make(map[string]types.VerificationResult, len(rows))
			for _, row := range rows {
				byID[row.ID] = row
			}
			ordered := make([]types.VerificationResult, 0, len(rows))
			for _, id := range ids {
				if row, ok := byID[id]; ok {
					ordered = append(ordered, row)
				}
			}
			r.respondAnnotated(c, ordered, viewer)
			return
		}
	}

	q := r.db.Where("is_public = ?", true)
	if search != "" {
		q = q.Where("claim LIKE ?", "%"+search+"%")
	}
	var rows []types.VerificationResult
	if err := q.Order("created_at desc").Limit(50).Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	r.respondAnnotated(c, rows, viewer)
}

func (r Results) respondAnnotated(c *gin.Context, rows []types.VerificationResult, viewer string) {
	views, err := data.AnnotateResults(r.db, rows, viewer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	for i := range views {
		views[i].Verdict = types.DisplayVerdict(views[i].Verdict)
	}
	c.JSON(http.StatusOK, gin.H{"results": views})
}

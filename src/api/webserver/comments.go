package webserver

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/satyashodhak/factcheck-api/src/api/data"
	"github.com/satyashodhak/factcheck-api/src/api/types"
	"gorm.io/gorm"
)

type Comments struct {
	db        *gorm.DB
	sanitizer *bluemonday.Policy
}

func NewComments(db *gorm.DB) Comments {
	// Strict sanitizer allowing only basic markdown output.
	sanitizer := bluemonday.StrictPolicy()
	sanitizer.AllowElements("p", "br", "strong", "em", "code", "pre", "blockquote")
	sanitizer.AllowElements("ul", "ol", "li")
	sanitizer.AllowAttrs("href").OnElements("a")
	sanitizer.RequireParseableURLs(true)
	sanitizer.AddTargetBlankToFullyQualifiedLinks(true)
	sanitizer.RequireNoFollowOnLinks(true)

	return Comments{db: db, sanitizer: sanitizer}
}

func (m Comments) Create(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required,min=1,max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	req.Content = m.sanitizer.Sanitize(req.Content)
	if !utf8.ValidString(req.Content) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid characters in input"})
		return
	}
	if len(req.Content) < 1 || len(req.Content) > 2000 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "content must be between 1 and 2000 characters"})
		return
	}

	claimID := c.Param("id")
	var result types.VerificationResult
	if err := m.db.Select("id").First(&result, "id = ?", claimID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "result not found"})
		return
	}

	uid := c.GetString("uid")
	var user types.User
	if err := m.db.First(&user, "id = ?", uid).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "unknown user"})
		return
	}

	comment := types.Comment{
		ID:         uuid.NewString(),
		ClaimID:    claimID,
		UserID:     uid,
		Content:    req.Content,
		UserName:   user.Name,
		UserAvatar: user.AvatarURL,
	}
	if err := m.db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// List returns all comments for a result with per-viewer vote annotation.
func (m Comments) List(c *gin.Context) {
	claimID := c.Param("id")
	var result types.VerificationResult
	if err := m.db.Select("id").First(&result, "id = ?", claimID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "result not found"})
		return
	}

	views, err := data.CommentsWithVotes(m.db, claimID, c.GetString("uid"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": views})
}

// Delete removes a comment and its votes. Author only.
func (m Comments) Delete(c *gin.Context) {
	id := c.Param("id")
	uid := c.GetString("uid")

	err := m.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, uid).Delete(&types.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("comment_id = ?", id).Delete(&types.CommentVote{}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"err": "comment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

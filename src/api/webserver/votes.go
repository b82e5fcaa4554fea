package webserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/satyashodhak/factcheck-api/src/api/data"
	"gorm.io/gorm"
)

type Votes struct{ db *gorm.DB }

func NewVotes(db *gorm.DB) Votes { return Votes{db: db} }

type voteRequest struct {
	Value int8 `json:"value" binding:"required,oneof=-1 1"`
}

// CastResult toggles the caller's vote on a verification result and returns
// the updated aggregates.
func (v Votes) CastResult(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	state, err := data.ApplyResultVote(v.db, c.Param("id"), c.GetString("uid"), req.Value)
	if errors.Is(err, data.ErrVoteTargetNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"err": "result not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusOK, state)
}

// CastComment is CastResult for comment votes.
func (v Votes) CastComment(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	state, err := data.ApplyCommentVote(v.db, c.Param("id"), c.GetString("uid"), req.Value)
	if errors.Is(err, data.ErrVoteTargetNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"err": "comment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusOK, state)
}

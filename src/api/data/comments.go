package data

import (
	"github.com/satyashodhak/factcheck-api/src/api/types"
	"gorm.io/gorm"
)

// CommentView mirrors the shape the original get_comments_with_votes
// procedure returned: the comment plus aggregates and the viewer's vote.
type CommentView struct {
	types.Comment
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
	UserVote  *int8 `json:"user_vote"`
}

// CommentsWithVotes returns all comments for a claim, oldest first, annotated
// per viewer. viewerID may be empty.
func CommentsWithVotes(db *gorm.DB, claimID, viewerID string) ([]CommentView, error) {
	var comments []types.Comment
	if err := db.Where("claim_id = ?", claimID).Order("created_at asc").Find(&comments).Error; err != nil {
		return nil, err
	}

	views := make([]CommentView, len(comments))
	if len(comments) == 0 {
		return views, nil
	}

	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
		views[i] = CommentView{Comment: c}
	}

	var aggs []voteAgg
	err := db.Model(&types.CommentVote{}).
		Select("comment_id as target_id, " +
			"sum(case when value > 0 then 1 else 0 end) as up, " +
			"sum(case when value < 0 then 1 else 0 end) as down").
		Where("comment_id IN ?", ids).
		Group("comment_id").
		Scan(&aggs).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[string]voteAgg, len(aggs))
	for _, a := range aggs {
		byID[a.TargetID] = a
	}

	viewerVotes := make(map[string]int8)
	if viewerID != "" {
		var own []types.CommentVote
		if err := db.Where("user_id = ? AND comment_id IN ?", viewerID, ids).Find(&own).Error; err != nil {
			return nil, err
		}
		for _, v := range own {
			viewerVotes[v.CommentID] = v.Value
		}
	}

	for i := range views {
		if a, ok := byID[views[i].ID]; ok {
			views[i].Upvotes, views[i].Downvotes = a.Up, a.Down
		}
		if v, ok := viewerVotes[views[i].ID]; ok {
			vv := v
			views[i].UserVote = &vv
		}
	}
	return views, nil
}

package data

import (
	"github.com/satyashodhak/factcheck-api/src/api/types"
	"gorm.io/gorm"
)

// ResultView is a verification result annotated with the viewer-dependent
// vote state and the aggregates the list surfaces render.
type ResultView struct {
	types.VerificationResult
	Upvotes       int64 `json:"upvotes"`
	Downvotes     int64 `json:"downvotes"`
	UserVote      *int8 `json:"user_vote"`
	CommentsCount int64 `json:"comments_count"`
}

type voteAgg struct {
	TargetID string
	Up       int64
	Down     int64
}

// AnnotateResults decorates rows with vote aggregates, comment counts and the
// viewer's own vote. viewerID may be empty for anonymous readers.
func AnnotateResults(db *gorm.DB, results []types.VerificationResult, viewerID string) ([]ResultView, error) {
	views := make([]ResultView, len(results))
	if len(results) == 0 {
		return views, nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
		views[i] = ResultView{VerificationResult: r}
	}

	var aggs []voteAgg
	err := db.Model(&types.VerificationVote{}).
		Select("verification_id as target_id, " +
			"sum(case when value > 0 then 1 else 0 end) as up, " +
			"sum(case when value < 0 then 1 else 0 end) as down").
		Where("verification_id IN ?", ids).
		Group("verification_id").
		Scan(&aggs).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[string]voteAgg, len(aggs))
	for _, a := range aggs {
		byID[a.TargetID] = a
	}

	type commentAgg struct {
		ClaimID string
		N       int64
	}
	var comments []commentAgg
	err = db.Model(&types.Comment{}).
		Select("claim_id, count(*) as n").
		Where("claim_id IN ?", ids).
		Group("claim_id").
		Scan(&comments).Error
	if err != nil {
		return nil, err
	}
	commentsByID := make(map[string]int64, len(comments))
	for _, c := range comments {
		commentsByID[c.ClaimID] = c.N
	}

	viewerVotes := make(map[string]int8)
	if viewerID != "" {
		var own []types.VerificationVote
		if err := db.Where("user_id = ? AND verification_id IN ?", viewerID, ids).Find(&own).Error; err != nil {
			return nil, err
		}
		for _, v := range own {
			viewerVotes[v.VerificationID] = v.Value
		}
	}

	for i := range views {
		id := views[i].ID
		if a, ok := byID[id]; ok {
			views[i].Upvotes, views[i].Downvotes = a.Up, a.Down
		}
		views[i].CommentsCount = commentsByID[id]
		if v, ok := viewerVotes[id]; ok {
			vv := v
			views[i].UserVote = &vv
		}
	}
	return views, nil
}

package data

import (
	"errors"

	"github.com/satyashodhak/factcheck-api/src/api/types"
	"gorm.io/gorm"
)

var ErrVoteTargetNotFound = errors.New("vote target not found")

// VoteState is the aggregate returned to the caller after a toggle.
type VoteState struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
	UserVote  *int8 `json:"user_vote"`
}

// ApplyResultVote applies one signed vote from userID to a verification
// result inside a single transaction. Casting the same value again removes
// the vote; a different value replaces it. The whole read-modify-write runs
// server-side so concurrent voters cannot lose updates.
func ApplyResultVote(db *gorm.DB, resultID, userID string, value int8) (VoteState, error) {
	var state VoteState
	err := db.Transaction(func(tx *gorm.DB) error {
		var target types.VerificationResult
		if err := tx.Select("id").First(&target, "id = ?", resultID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVoteTargetNotFound
			}
			return err
		}

		var existing types.VerificationVote
		err := tx.First(&existing, "verification_id = ? AND user_id = ?", resultID, userID).Error
		switch {
		case err == nil && existing.Value == value:
			// Same vote again: toggle off.
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		case err == nil:
			existing.Value = value
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			state.UserVote = &existing.Value
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := types.VerificationVote{VerificationID: resultID, UserID: userID, Value: value}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
			state.UserVote = &vote.Value
		default:
			return err
		}

		up, down, err := countVotes(tx, &types.VerificationVote{}, "verification_id", resultID)
		if err != nil {
			return err
		}
		state.Upvotes, state.Downvotes = up, down
		return nil
	})
	return state, err
}

// ApplyCommentVote is ApplyResultVote over the comment vote relation.
func ApplyCommentVote(db *gorm.DB, commentID, userID string, value int8) (VoteState, error) {
	var state VoteState
	err := db.Transaction(func(tx *gorm.DB) error {
		var target types.Comment
		if err := tx.Select("id").First(&target, "id = ?", commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVoteTargetNotFound
			}
			return err
		}

		var existing types.CommentVote
		err := tx.First(&existing, "comment_id = ? AND user_id = ?", commentID, userID).Error
		switch {
		case err == nil && existing.Value == value:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		case err == nil:
			existing.Value = value
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			state.UserVote = &existing.Value
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := types.CommentVote{CommentID: commentID, UserID: userID, Value: value}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
			state.UserVote = &vote.Value
		default:
			return err
		}

		up, down, err := countVotes(tx, &types.CommentVote{}, "comment_id", commentID)
		if err != nil {
			return err
		}
		state.Upvotes, state.Downvotes = up, down
		return nil
	})
	return state, err
}

func countVotes(tx *gorm.DB, model interface{}, column, id string) (up int64, down int64, err error) {
	if err = tx.Model(model).Where(column+" = ? AND value > 0", id).Count(&up).Error; err != nil {
		return
	}
	err = tx.Model(model).Where(column+" = ? AND value < 0", id).Count(&down).Error
	return
}

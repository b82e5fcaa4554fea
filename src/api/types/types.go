package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Verdicts form a closed enumeration. Anything else coming back from the
// reasoning engine is kept as-is in storage and normalized to "Unknown" by
// display helpers, never rejected at the boundary.
const (
	VerdictTrue          = "TRUE"
	VerdictFalse         = "FALSE"
	VerdictMisleading    = "MISLEADING"
	VerdictPartiallyTrue = "PARTIALLY_TRUE"
	VerdictInconclusive  = "INCONCLUSIVE"
)

// ValidVerdict reports whether v is a member of the verdict enumeration.
func ValidVerdict(v string) bool {
	switch v {
	case VerdictTrue, VerdictFalse, VerdictMisleading, VerdictPartiallyTrue, VerdictInconclusive:
		return true
	}
	return false
}

// DisplayVerdict maps out-of-enumeration values to "Unknown" for responses.
func DisplayVerdict(v string) string {
	if ValidVerdict(v) {
		return v
	}
	return "Unknown"
}

// Source is one evidence entry attached to a verification result.
type Source struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// SourceList is stored as a JSON column.
type SourceList []Source

func (s SourceList) Value() (driver.Value, error) {
	if s == nil {
		s = SourceList{}
	}
	return json.Marshal(s)
}

func (s *SourceList) Scan(value interface{}) error {
	if value == nil {
		*s = SourceList{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("sources: unsupported column type %T", value)
	}
	if len(b) == 0 {
		*s = SourceList{}
		return nil
	}
	return json.Unmarshal(b, s)
}

// StringList is stored as a JSON column (tags).
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		s = StringList{}
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = StringList{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("tags: unsupported column type %T", value)
	}
	if len(b) == 0 {
		*s = StringList{}
		return nil
	}
	return json.Unmarshal(b, s)
}

// Registered users
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"size:256;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:128;not null" json:"-"`
	Name         string `gorm:"size:128"`
	AvatarURL    string `gorm:"size:512"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Fact-check outcomes
type VerificationResult struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      string     `gorm:"size:36;index;not null" json:"user_id"`
	Claim       string     `gorm:"type:text;not null" json:"claim"`
	Verdict     string     `gorm:"size:32;not null" json:"verdict"`
	Confidence  int        `gorm:"not null" json:"confidence"`
	Explanation string     `gorm:"type:text" json:"explanation"`
	Sources     SourceList `gorm:"type:json" json:"sources"`
	IsPublic    bool       `gorm:"default:false;index" json:"is_public"`
	IsSaved     bool       `gorm:"default:false;index" json:"is_saved"`
	Notes       string     `gorm:"type:text" json:"notes,omitempty"`
	Tags        StringList `gorm:"type:json" json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Comments on a verification result. Flat, no threading. Author name and
// avatar are denormalized at write time so deleted users keep attribution.
type Comment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ClaimID    string    `gorm:"size:36;index;not null" json:"claim_id"`
	UserID     string    `gorm:"size:36;index;not null" json:"user_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	UserName   string    `gorm:"size:128;not null" json:"user_name"`
	UserAvatar string    `gorm:"size:512" json:"user_avatar,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// One row per (voter, result). Value is +1 or -1; removal deletes the row.
type VerificationVote struct {
	ID             uint64 `gorm:"primaryKey"`
	VerificationID string `gorm:"size:36;not null;uniqueIndex:idx_result_voter"`
	UserID         string `gorm:"size:36;not null;uniqueIndex:idx_result_voter"`
	Value          int8   `gorm:"not null"`
	CreatedAt      time.Time
}

// One row per (voter, comment), same shape as VerificationVote.
type CommentVote struct {
	ID        uint64 `gorm:"primaryKey"`
	CommentID string `gorm:"size:36;not null;uniqueIndex:idx_comment_voter"`
	UserID    string `gorm:"size:36;not null;uniqueIndex:idx_comment_voter"`
	Value     int8   `gorm:"not null"`
	CreatedAt time.Time
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}

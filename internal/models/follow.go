package models

import (
	"time"
)

// Follow is a directed edge from Follower to Followed. Every account has a
// permanent edge to itself, so its own posts appear in its timeline.
type Follow struct {
	FollowerID int64     `gorm:"primaryKey;autoIncrement:false;column:follower_id"`
	FollowedID int64     `gorm:"primaryKey;autoIncrement:false;index;column:followed_id"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`

	// Relationships
	Follower *Account `gorm:"foreignKey:FollowerID;references:ID"`
	Followed *Account `gorm:"foreignKey:FollowedID;references:ID"`
}

// TableName specifies the table name for Follow
func (Follow) TableName() string {
	return "follows"
}

// IsSelf reports whether f is the bootstrap edge of an account to itself.
func (f *Follow) IsSelf() bool {
	return f.FollowerID == f.FollowedID
}

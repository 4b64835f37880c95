package models

import (
	"time"
)

// Comment is a reply to a post. Moderators disable comments instead of
// deleting them.
type Comment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Body      string    `gorm:"type:text;not null;column:body"`
	BodyHTML  string    `gorm:"type:text;not null;default:'';column:body_html"`
	Disabled  bool      `gorm:"not null;default:false;column:disabled"`
	CreatedAt time.Time `gorm:"not null;index;column:created_at"`
	AuthorID  int64     `gorm:"not null;index;column:author_id"`
	PostID    int64     `gorm:"not null;index;column:post_id"`

	// Relationships
	Author *Account `gorm:"foreignKey:AuthorID;references:ID"`
	Post   *Post    `gorm:"foreignKey:PostID;references:ID"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}

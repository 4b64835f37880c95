package models

import (
	"time"
)

// Post is a blog entry, optionally carrying an image
type Post struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Body      string    `gorm:"type:text;not null;column:body"`
	BodyHTML  string    `gorm:"type:text;not null;default:'';column:body_html"`
	ImageFile string    `gorm:"type:varchar(255);not null;default:'';column:image_file"`
	CreatedAt time.Time `gorm:"not null;index;column:created_at"`
	AuthorID  int64     `gorm:"not null;index;column:author_id"`

	// Relationships
	Author *Account `gorm:"foreignKey:AuthorID;references:ID"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// HasImage reports whether an image is attached.
func (p *Post) HasImage() bool {
	return p.ImageFile != ""
}

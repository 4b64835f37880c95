package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/models"
	"github.com/photoblog/photoblog/internal/render"
)

// CommentService manages comments
type CommentService struct {
	base
	renderer *render.Renderer
}

// Create adds a comment by author on post
func (s *CommentService) Create(ctx context.Context, author *models.Account, post *models.Post, body string) (*models.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, invalid("body", "is required")
	}
	html, err := s.renderer.Render(body)
	if err != nil {
		return nil, err
	}
	comment := &models.Comment{
		Body:      body,
		BodyHTML:  html,
		CreatedAt: s.now(),
		AuthorID:  author.ID,
		PostID:    post.ID,
	}
	if err := db.NewCommentRepository(s.repo).Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	comment.Author = author
	comment.Post = post
	s.invalidate(ctx)
	return comment, nil
}

// Get loads a comment with its author
func (s *CommentService) Get(ctx context.Context, id int64) (*models.Comment, error) {
	comment, err := db.NewCommentRepository(s.repo).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, ErrNotFound
	}
	return comment, nil
}

// SetDisabled hides or restores a comment. Disabled comments stay stored.
func (s *CommentService) SetDisabled(ctx context.Context, comment *models.Comment, disabled bool) error {
	if err := db.NewCommentRepository(s.repo).SetDisabled(ctx, comment.ID, disabled); err != nil {
		return fmt.Errorf("set comment disabled: %w", err)
	}
	comment.Disabled = disabled
	s.logger(ctx).Info("Comment moderated",
		zap.Int64("comment_id", comment.ID),
		zap.Bool("disabled", disabled))
	return nil
}

// Delete removes one comment. Its author and post are untouched.
func (s *CommentService) Delete(ctx context.Context, comment *models.Comment) error {
	if err := db.NewCommentRepository(s.repo).Delete(ctx, comment.ID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

// ListForPost returns a page of the comments on post, oldest first
func (s *CommentService) ListForPost(ctx context.Context, post *models.Post, page db.Page) ([]models.Comment, db.Pagination, error) {
	comments, total, err := db.NewCommentRepository(s.repo).ListByPost(ctx, post.ID, page)
	if err != nil {
		return nil, db.Pagination{}, err
	}
	return comments, db.Paginate(page, total), nil
}

// List returns a page of every comment, newest first
func (s *CommentService) List(ctx context.Context, page db.Page) ([]models.Comment, db.Pagination, error) {
	comments, total, err := db.NewCommentRepository(s.repo).List(ctx, page)
	if err != nil {
		return nil, db.Pagination{}, err
	}
	return comments, db.Paginate(page, total), nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/models"
	"github.com/photoblog/photoblog/internal/render"
	"github.com/photoblog/photoblog/internal/storage"
	"github.com/photoblog/photoblog/pkg/telemetry"
)

// Image is an uploaded picture attached to a new post
type Image struct {
	Filename string
	Content  io.Reader
	Size     int64
}

// PostService manages posts
type PostService struct {
	base
	renderer *render.Renderer
}

// Create stores a post, rendering its body once. The image, if any, is
// saved first and removed again when the post cannot be stored.
func (s *PostService) Create(ctx context.Context, author *models.Account, body string, img *Image) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostService.Create")
	defer span.End()

	if strings.TrimSpace(body) == "" {
		return nil, invalid("body", "is required")
	}
	html, err := s.renderer.Render(body)
	if err != nil {
		return nil, err
	}
	post := &models.Post{
		Body:      body,
		BodyHTML:  html,
		CreatedAt: s.now(),
		AuthorID:  author.ID,
	}

	if img != nil {
		name, err := s.saveImage(ctx, img)
		if err != nil {
			return nil, err
		}
		post.ImageFile = name
	}

	if err := db.NewPostRepository(s.repo).Create(ctx, post); err != nil {
		s.deleteImage(ctx, post.ImageFile)
		return nil, fmt.Errorf("create post: %w", err)
	}
	post.Author = author
	s.invalidate(ctx)
	return post, nil
}

func (s *PostService) saveImage(ctx context.Context, img *Image) (string, error) {
	if s.opts.Store == nil {
		return "", errors.New("image storage is not configured")
	}
	name, err := storage.NewImageName(img.Filename)
	if err != nil {
		return "", invalid("image", err.Error())
	}
	if err := s.opts.Store.Save(ctx, name, img.Content, img.Size, storage.ContentType(name)); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return name, nil
}

// Get loads a post with its author
func (s *PostService) Get(ctx context.Context, id int64) (*models.Post, error) {
	post, err := db.NewPostRepository(s.repo).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}
	return post, nil
}

// Update replaces the body of post and renders it again
func (s *PostService) Update(ctx context.Context, post *models.Post, body string) error {
	if strings.TrimSpace(body) == "" {
		return invalid("body", "is required")
	}
	html, err := s.renderer.Render(body)
	if err != nil {
		return err
	}
	post.Body, post.BodyHTML = body, html
	if err := db.NewPostRepository(s.repo).Update(ctx, post); err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

// Delete removes the image of post, then the post with its comments. A
// failure to remove the image is logged and does not stop the deletion.
func (s *PostService) Delete(ctx context.Context, post *models.Post) error {
	ctx, span := telemetry.StartSpan(ctx, "PostService.Delete")
	defer span.End()

	s.deleteImage(ctx, post.ImageFile)
	err := s.repo.WithTx(ctx, func(tx *db.Repository) error {
		if err := db.NewCommentRepository(tx).DeleteByPost(ctx, post.ID); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		return db.NewPostRepository(tx).Delete(ctx, post.ID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	s.logger(ctx).Info("Post deleted", zap.Int64("post_id", post.ID))
	return nil
}

// List returns a page of every post, newest first
func (s *PostService) List(ctx context.Context, page db.Page) ([]models.Post, db.Pagination, error) {
	posts, total, err := db.NewPostRepository(s.repo).List(ctx, page)
	if err != nil {
		return nil, db.Pagination{}, err
	}
	return posts, db.Paginate(page, total), nil
}

// ListByAuthor returns a page of the posts of author, newest first
func (s *PostService) ListByAuthor(ctx context.Context, author *models.Account, page db.Page) ([]models.Post, db.Pagination, error) {
	posts, total, err := db.NewPostRepository(s.repo).ListByAuthor(ctx, author.ID, page)
	if err != nil {
		return nil, db.Pagination{}, err
	}
	return posts, db.Paginate(page, total), nil
}

// Feed returns a page of the posts of every account reader follows, the
// reader's own included
func (s *PostService) Feed(ctx context.Context, reader *models.Account, page db.Page) ([]models.Post, db.Pagination, error) {
	posts, total, err := db.NewPostRepository(s.repo).ListFeed(ctx, reader.ID, page)
	if err != nil {
		return nil, db.Pagination{}, err
	}
	return posts, db.Paginate(page, total), nil
}

// CommentCounts maps post id to its number of comments
func (s *PostService) CommentCounts(ctx context.Context, posts []models.Post) (map[int64]int64, error) {
	ids := make([]int64, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	return db.NewCommentRepository(s.repo).CountByPosts(ctx, ids)
}

// ImageURL addresses the image of post. It returns "" when none is attached.
func (s *PostService) ImageURL(ctx context.Context, post *models.Post) (string, error) {
	if !post.HasImage() || s.opts.Store == nil {
		return "", nil
	}
	return s.opts.Store.URL(ctx, post.ImageFile)
}

// CountByAuthor counts the posts of author
func (s *PostService) CountByAuthor(ctx context.Context, author *models.Account) (int64, error) {
	return db.NewPostRepository(s.repo).CountByAuthor(ctx, author.ID)
}

// Package service holds the account, social graph and content operations.
// Every mutation runs in one database transaction.
package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/render"
	"github.com/photoblog/photoblog/internal/storage"
	"github.com/photoblog/photoblog/pkg/auth"
	"github.com/photoblog/photoblog/pkg/config"
	"github.com/photoblog/photoblog/pkg/logging"
)

// Invalidator drops cached listings after content changes
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Options carries the collaborators shared by the services
type Options struct {
	Security config.SecurityConfig
	Tokens   *auth.TokenCodec
	Store    storage.Store
	Pages    Invalidator
	Now      func() time.Time
}

// Services bundles every service over one repository
type Services struct {
	Accounts *AccountService
	Roles    *RoleService
	Follows  *FollowService
	Posts    *PostService
	Comments *CommentService
}

// New wires the services
func New(repo *db.Repository, opts Options) *Services {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	v := newValidator()
	b := base{repo: repo, opts: opts, validate: v}
	return &Services{
		Accounts: &AccountService{base: b.named("account-service")},
		Roles:    &RoleService{base: b.named("role-service")},
		Follows:  &FollowService{base: b.named("follow-service")},
		Posts:    &PostService{base: b.named("post-service"), renderer: render.NewPostRenderer()},
		Comments: &CommentService{base: b.named("comment-service"), renderer: render.NewCommentRenderer()},
	}
}

type base struct {
	repo      *db.Repository
	opts      Options
	validate  *validator.Validate
	component string
}

func (b base) named(component string) base {
	b.component = component
	return b
}

func (b base) now() time.Time {
	return b.opts.Now()
}

func (b base) invalidate(ctx context.Context) {
	if b.opts.Pages == nil {
		return
	}
	if err := b.opts.Pages.Invalidate(ctx); err != nil {
		b.logger(ctx).Warn("Failed to invalidate cached pages", zap.Error(err))
	}
}

func (b base) logger(ctx context.Context) *zap.Logger {
	return logging.FromContext(ctx, logging.WithComponent(b.component))
}

func (b base) deleteImage(ctx context.Context, name string) {
	if name == "" || b.opts.Store == nil {
		return
	}
	if err := b.opts.Store.Delete(ctx, name); err != nil {
		b.logger(ctx).Error("Failed to delete image", zap.String("image", name), zap.Error(err))
	}
}

package service

import (
	"context"

	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/models"
)

// FollowService maintains the directed follow graph. The self edge created
// with every account is never removed here.
type FollowService struct {
	base
}

// Follow adds the edge follower -> followed. An existing edge is kept as is.
func (s *FollowService) Follow(ctx context.Context, follower, followed *models.Account) error {
	follows := db.NewFollowRepository(s.repo)
	existing, err := follows.Get(ctx, follower.ID, followed.ID)
	if err != nil || existing != nil {
		return err
	}
	err = follows.Create(ctx, &models.Follow{
		FollowerID: follower.ID,
		FollowedID: followed.ID,
		CreatedAt:  s.now(),
	})
	if isUniqueViolation(err) {
		// lost a race with an identical follow
		return nil
	}
	return err
}

// Unfollow removes the edge follower -> followed when present
func (s *FollowService) Unfollow(ctx context.Context, follower, followed *models.Account) error {
	if follower.ID == followed.ID {
		return nil
	}
	_, err := db.NewFollowRepository(s.repo).Delete(ctx, follower.ID, followed.ID)
	return err
}

// IsFollowing reports the edge a -> b
func (s *FollowService) IsFollowing(ctx context.Context, a, b *models.Account) (bool, error) {
	f, err := db.NewFollowRepository(s.repo).Get(ctx, a.ID, b.ID)
	return f != nil, err
}

// IsFollowedBy reports the edge b -> a
func (s *FollowService) IsFollowedBy(ctx context.Context, a, b *models.Account) (bool, error) {
	return s.IsFollowing(ctx, b, a)
}

// FollowedCount counts accounts a follows, a itself included
func (s *FollowService) FollowedCount(ctx context.Context, a *models.Account) (int64, error) {
	return db.NewFollowRepository(s.repo).CountFollowed(ctx, a.ID)
}

// FollowerCount counts accounts following a, a itself included
func (s *FollowService) FollowerCount(ctx context.Context, a *models.Account) (int64, error) {
	return db.NewFollowRepository(s.repo).CountFollowers(ctx, a.ID)
}

// Followers lists the accounts following a, newest edge first
func (s *FollowService) Followers(ctx context.Context, a *models.Account, page db.Page) ([]models.Follow, db.Pagination, error) {
	follows, total, err := db.NewFollowRepository(s.repo).ListFollowers(ctx, a.ID, page)
	if err != nil {
		return nil, db.Pagination{}, err
	}
	return follows, db.Paginate(page, total), nil
}

// Followed lists the accounts a follows, newest edge first
func (s *FollowService) Followed(ctx context.Context, a *models.Account, page db.Page) ([]models.Follow, db.Pagination, error) {
	follows, total, err := db.NewFollowRepository(s.repo).ListFollowed(ctx, a.ID, page)
	if err != nil {
		return nil, db.Pagination{}, err
	}
	return follows, db.Paginate(page, total), nil
}

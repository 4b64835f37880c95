package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/photoblog/photoblog/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx runs fn inside one transaction. The repository handed to fn and
// every entity repository built from it share that transaction. fn's error
// rolls everything back.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// AccountRepository provides account-related database operations
type AccountRepository struct {
	*Repository
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(repo *Repository) *AccountRepository {
	return &AccountRepository{Repository: repo}
}

// GetByID retrieves an account by ID, with its role
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Preload("Role").First(&account, id).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &account, nil
}

// GetByEmail retrieves an account by its normalized email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Preload("Role").
		Where("email = ?", models.NormalizeEmail(email)).
		First(&account).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &account, nil
}

// GetByUsername retrieves an account by username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Preload("Role").
		Where("username = ?", username).
		First(&account).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &account, nil
}

// Create creates a new account. The role association is never written.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(account).Error
}

// Update saves every column of an account
func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(account).Error
}

// TouchLastSeen updates only last_seen
func (r *AccountRepository) TouchLastSeen(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", account.ID).
		Update("last_seen", account.LastSeen).Error
}

// Delete removes the account row only
func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Account{}, id).Error
}

// List returns a page of accounts ordered by id
func (r *AccountRepository) List(ctx context.Context, page Page) ([]models.Account, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Account{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var accounts []models.Account
	if err := r.db.WithContext(ctx).Preload("Role").
		Order("id ASC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&accounts).Error; err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

// Count returns the number of accounts
func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Count(&total).Error
	return total, err
}

// RoleRepository provides role-related database operations
type RoleRepository struct {
	*Repository
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(repo *Repository) *RoleRepository {
	return &RoleRepository{Repository: repo}
}

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).First(&role, id).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &role, nil
}

// GetByName retrieves a role by name
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &role, nil
}

// GetDefault retrieves the role assigned to new accounts
func (r *RoleRepository) GetDefault(ctx context.Context) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Where("is_default = ?", true).First(&role).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &role, nil
}

// List returns all roles ordered by name
func (r *RoleRepository) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// Save creates or updates a role
func (r *RoleRepository) Save(ctx context.Context, role *models.Role) error {
	return r.db.WithContext(ctx).Save(role).Error
}

// FollowRepository provides follow-related database operations
type FollowRepository struct {
	*Repository
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(repo *Repository) *FollowRepository {
	return &FollowRepository{Repository: repo}
}

// Get retrieves the edge follower -> followed
func (r *FollowRepository) Get(ctx context.Context, followerID, followedID int64) (*models.Follow, error) {
	var follow models.Follow
	if err := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		First(&follow).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &follow, nil
}

// Create creates an edge
func (r *FollowRepository) Create(ctx context.Context, follow *models.Follow) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(follow).Error
}

// Delete removes the edge follower -> followed and reports whether it existed
func (r *FollowRepository) Delete(ctx context.Context, followerID, followedID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{})
	return res.RowsAffected > 0, res.Error
}

// DeleteForAccount removes every edge touching the account, in both directions
func (r *FollowRepository) DeleteForAccount(ctx context.Context, accountID int64) error {
	return r.db.WithContext(ctx).
		Where("follower_id = ? OR followed_id = ?", accountID, accountID).
		Delete(&models.Follow{}).Error
}

// CountFollowed counts edges leaving the account, the self edge included
func (r *FollowRepository) CountFollowed(ctx context.Context, accountID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", accountID).Count(&n).Error
	return n, err
}

// CountFollowers counts edges reaching the account, the self edge included
func (r *FollowRepository) CountFollowers(ctx context.Context, accountID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followed_id = ?", accountID).Count(&n).Error
	return n, err
}

// Count counts all edges
func (r *FollowRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Count(&n).Error
	return n, err
}

// ListFollowers returns the edges reaching the account, newest first,
// without the self edge. Follower is preloaded.
func (r *FollowRepository) ListFollowers(ctx context.Context, accountID int64, page Page) ([]models.Follow, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followed_id = ? AND follower_id <> ?", accountID, accountID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var follows []models.Follow
	if err := r.db.WithContext(ctx).Preload("Follower").
		Where("followed_id = ? AND follower_id <> ?", accountID, accountID).
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&follows).Error; err != nil {
		return nil, 0, err
	}
	return follows, total, nil
}

// ListFollowed returns the edges leaving the account, newest first,
// without the self edge. Followed is preloaded.
func (r *FollowRepository) ListFollowed(ctx context.Context, accountID int64, page Page) ([]models.Follow, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id <> ?", accountID, accountID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var follows []models.Follow
	if err := r.db.WithContext(ctx).Preload("Followed").
		Where("follower_id = ? AND followed_id <> ?", accountID, accountID).
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&follows).Error; err != nil {
		return nil, 0, err
	}
	return follows, total, nil
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// GetByID retrieves a post by ID, with its author
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &post, nil
}

// Create creates a new post
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
}

// Update updates a post
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(post).Error
}

// Delete removes the post row only
func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Post{}, id).Error
}

// DeleteByAuthor removes every post of an author
func (r *PostRepository) DeleteByAuthor(ctx context.Context, authorID int64) error {
	return r.db.WithContext(ctx).Where("author_id = ?", authorID).Delete(&models.Post{}).Error
}

// ImageFilesByAuthor lists the attached image names of an author's posts
func (r *PostRepository) ImageFilesByAuthor(ctx context.Context, authorID int64) ([]string, error) {
	var files []string
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("author_id = ? AND image_file <> ''", authorID).
		Pluck("image_file", &files).Error
	return files, err
}

// List returns a page of all posts, newest first
func (r *PostRepository) List(ctx context.Context, page Page) ([]models.Post, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&models.Post{}), page)
}

// ListByAuthor returns a page of an author's posts, newest first
func (r *PostRepository) ListByAuthor(ctx context.Context, authorID int64, page Page) ([]models.Post, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID), page)
}

// ListFeed returns a page of posts written by accounts the reader follows.
// The self edge brings in the reader's own posts.
func (r *PostRepository) ListFeed(ctx context.Context, readerID int64, page Page) ([]models.Post, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Post{}).
		Joins("JOIN follows ON follows.followed_id = posts.author_id").
		Where("follows.follower_id = ?", readerID)
	return r.list(ctx, q, page)
}

func (r *PostRepository) list(ctx context.Context, q *gorm.DB, page Page) ([]models.Post, int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var posts []models.Post
	if err := q.Session(&gorm.Session{}).Preload("Author").
		Order("posts.created_at DESC").Order("posts.id DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Count returns the number of posts
func (r *PostRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error
	return n, err
}

// CountByAuthor returns the number of posts by an author
func (r *PostRepository) CountByAuthor(ctx context.Context, authorID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&n).Error
	return n, err
}

// CommentRepository provides comment-related database operations
type CommentRepository struct {
	*Repository
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(repo *Repository) *CommentRepository {
	return &CommentRepository{Repository: repo}
}

// GetByID retrieves a comment by ID, with its author
func (r *CommentRepository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &comment, nil
}

// Create creates a new comment
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
}

// SetDisabled updates only the disabled flag
func (r *CommentRepository) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		Update("disabled", disabled).Error
}

// Delete removes one comment
func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error
}

// DeleteByPost removes every comment on a post
func (r *CommentRepository) DeleteByPost(ctx context.Context, postID int64) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Comment{}).Error
}

// DeleteByAuthor removes every comment written by an account, on any post
func (r *CommentRepository) DeleteByAuthor(ctx context.Context, authorID int64) error {
	return r.db.WithContext(ctx).Where("author_id = ?", authorID).Delete(&models.Comment{}).Error
}

// DeleteOnPostsOf removes every comment on the posts of an author
func (r *CommentRepository) DeleteOnPostsOf(ctx context.Context, authorID int64) error {
	sub := r.db.WithContext(ctx).Model(&models.Post{}).Select("id").Where("author_id = ?", authorID)
	return r.db.WithContext(ctx).Where("post_id IN (?)", sub).Delete(&models.Comment{}).Error
}

// ListByPost returns a page of a post's comments, oldest first
func (r *CommentRepository) ListByPost(ctx context.Context, postID int64, page Page) ([]models.Comment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ?", postID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var comments []models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC").Order("id ASC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// List returns a page of all comments, newest first
func (r *CommentRepository) List(ctx context.Context, page Page) ([]models.Comment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var comments []models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").
		Order("created_at DESC").Order("id DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// CountByPost returns the number of comments on a post
func (r *CommentRepository) CountByPost(ctx context.Context, postID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}

// CountByPosts returns comment counts keyed by post id
func (r *CommentRepository) CountByPosts(ctx context.Context, postIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		PostID int64
		N      int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.PostID] = row.N
	}
	return counts, nil
}

// Count returns the number of comments
func (r *CommentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Count(&n).Error
	return n, err
}

package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/models"
	"github.com/photoblog/photoblog/pkg/auth"
	"github.com/photoblog/photoblog/pkg/config"
)

func init() {
	auth.HashCost = bcrypt.MinCost
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeStore struct {
	mu        sync.Mutex
	files     map[string]string
	deleted   []string
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: map[string]string{}}
}

func (f *fakeStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = string(data)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.files, name)
	return nil
}

func (f *fakeStore) URL(ctx context.Context, name string) (string, error) {
	return "/uploads/" + name, nil
}

func (f *fakeStore) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[name]
	return ok
}

type countingInvalidator struct {
	n int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.n++
	return nil
}

type fixture struct {
	svc   *Services
	repo  *db.Repository
	clock *fakeClock
	store *fakeStore
	pages *countingInvalidator
}

const adminEmail = "admin@example.com"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Open(sqlite.Open(":memory:"), "ERROR")
	require.NoError(t, err)
	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate(context.Background()))

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := auth.NewTokenCodec("test secret", auth.WithClock(clock.Now))
	require.NoError(t, err)

	f := &fixture{
		repo:  db.NewRepository(database.DB),
		clock: clock,
		store: newFakeStore(),
		pages: &countingInvalidator{},
	}
	f.svc = New(f.repo, Options{
		Security: config.SecurityConfig{
			SecretKey:    "test secret",
			AdminEmail:   adminEmail,
			TokenTTL:     time.Hour,
			AuthTokenTTL: time.Hour,
		},
		Tokens: tokens,
		Store:  f.store,
		Pages:  f.pages,
		Now:    clock.Now,
	})
	require.NoError(t, f.svc.Roles.InsertRoles(context.Background()))
	return f
}

func (f *fixture) account(t *testing.T, email, username string) *models.Account {
	t.Helper()
	a, err := f.svc.Accounts.Create(context.Background(), NewAccount{
		Email:     email,
		Username:  username,
		Password:  "cat",
		Confirmed: true,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) post(t *testing.T, author *models.Account, body string, img *Image) *models.Post {
	t.Helper()
	p, err := f.svc.Posts.Create(context.Background(), author, body, img)
	require.NoError(t, err)
	return p
}

func TestInsertRolesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Roles.InsertRoles(ctx))
	roles, err := f.svc.Roles.List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, []string{models.RoleAdministrator, models.RoleModerator, models.RoleUser},
		[]string{roles[0].Name, roles[1].Name, roles[2].Name})

	def, err := f.svc.Roles.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, def.Name)
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.account(t, " John@Example.com", "john")
	assert.Equal(t, "john@example.com", a.Email)
	assert.Equal(t, models.EmailHash("john@example.com"), a.AvatarHash)
	assert.Equal(t, models.RoleUser, a.Role.Name)
	assert.Equal(t, a.MemberSince, a.LastSeen)
	assert.NotEqual(t, "cat", a.PasswordHash)

	assert.True(t, a.Can(models.PermComment))
	assert.True(t, a.Can(models.PermWriteArticles))
	assert.False(t, a.Can(models.PermModerateComments))
	assert.False(t, a.IsAdministrator())

	following, err := f.svc.Follows.IsFollowing(ctx, a, a)
	require.NoError(t, err)
	assert.True(t, following, "new accounts follow themselves")
	n, err := f.svc.Follows.FollowerCount(ctx, a)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCreateAdministratorByEmail(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, "ADMIN@example.com", "admin")
	assert.Equal(t, models.RoleAdministrator, admin.Role.Name)
	assert.True(t, admin.IsAdministrator())
}

func TestCreateAccountRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, "john@example.com", "john")

	_, err := f.svc.Accounts.Create(ctx, NewAccount{Email: "JOHN@example.com", Username: "other", Password: "x"})
	assert.True(t, errors.Is(err, ErrConflict), "err = %v", err)

	_, err = f.svc.Accounts.Create(ctx, NewAccount{Email: "other@example.com", Username: "john", Password: "x"})
	assert.True(t, errors.Is(err, ErrConflict), "err = %v", err)
}

func TestCreateAccountValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    NewAccount
		field string
	}{
		{"bad email", NewAccount{Email: "nope", Username: "john", Password: "x"}, "email"},
		{"username starts with digit", NewAccount{Email: "a@example.com", Username: "1john", Password: "x"}, "username"},
		{"username with dash", NewAccount{Email: "a@example.com", Username: "jo-hn", Password: "x"}, "username"},
		{"empty password", NewAccount{Email: "a@example.com", Username: "john"}, "password"},
		{"long name", NewAccount{Email: "a@example.com", Username: "john", Password: "x", Name: strings.Repeat("n", 65)}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Accounts.Create(ctx, tt.in)
			require.True(t, errors.Is(err, ErrValidation), "err = %v", err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "john@example.com", "john")

	got, err := f.svc.Accounts.Authenticate(ctx, "John@example.com", "cat")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = f.svc.Accounts.Authenticate(ctx, "john@example.com", "dog")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	_, err = f.svc.Accounts.Authenticate(ctx, "nobody@example.com", "cat")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestAuthToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "john@example.com", "john")

	token, ttl, err := f.svc.Accounts.IssueAuthToken(a)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	got, err := f.svc.Accounts.VerifyAuthToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)

	confirm, err := f.svc.Accounts.GenerateConfirmationToken(a, 0)
	require.NoError(t, err)
	got, err = f.svc.Accounts.VerifyAuthToken(ctx, confirm)
	require.NoError(t, err)
	assert.Nil(t, got, "a confirmation token must not authenticate")

	f.clock.Advance(2 * time.Hour)
	got, err = f.svc.Accounts.VerifyAuthToken(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "john@example.com", "john")
	before := a.LastSeen

	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.Accounts.Ping(ctx, a))

	got, err := f.svc.Accounts.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.LastSeen.After(before))
	assert.True(t, got.MemberSince.Equal(before), "member_since never changes")
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.Accounts.Create(ctx, NewAccount{Email: "a@example.com", Username: "a", Password: "cat"})
	require.NoError(t, err)
	b := f.account(t, "b@example.com", "b")
	assert.False(t, a.Confirmed)

	tokenB, err := f.svc.Accounts.GenerateConfirmationToken(b, 0)
	require.NoError(t, err)
	ok, err := f.svc.Accounts.Confirm(ctx, a, tokenB)
	require.NoError(t, err)
	assert.False(t, ok, "token of another account")

	ok, err = f.svc.Accounts.Confirm(ctx, a, "garbage")
	require.NoError(t, err)
	assert.False(t, ok)

	expiring, err := f.svc.Accounts.GenerateConfirmationToken(a, time.Second)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Second)
	ok, err = f.svc.Accounts.Confirm(ctx, a, expiring)
	require.NoError(t, err)
	assert.False(t, ok, "expired token")

	token, err := f.svc.Accounts.GenerateConfirmationToken(a, 0)
	require.NoError(t, err)
	ok, err = f.svc.Accounts.Confirm(ctx, a, token)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.svc.Accounts.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")
	b := f.account(t, "b@example.com", "b")

	token, err := f.svc.Accounts.GenerateResetToken(a, 0)
	require.NoError(t, err)

	ok, err := f.svc.Accounts.ResetPassword(ctx, b, token, "dog")
	require.NoError(t, err)
	assert.False(t, ok)

	confirm, err := f.svc.Accounts.GenerateConfirmationToken(a, 0)
	require.NoError(t, err)
	ok, err = f.svc.Accounts.ResetPassword(ctx, a, confirm, "dog")
	require.NoError(t, err)
	assert.False(t, ok, "tokens are single purpose")

	ok, err = f.svc.Accounts.ResetPassword(ctx, a, token, "dog")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.Accounts.Authenticate(ctx, "a@example.com", "dog")
	assert.NoError(t, err)
	_, err = f.svc.Accounts.Authenticate(ctx, "a@example.com", "cat")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")

	err := f.svc.Accounts.ChangePassword(ctx, a, "wrong", "dog")
	assert.True(t, errors.Is(err, ErrValidation))
	require.NoError(t, f.svc.Accounts.ChangePassword(ctx, a, "cat", "dog"))
	_, err = f.svc.Accounts.Authenticate(ctx, "a@example.com", "dog")
	assert.NoError(t, err)
}

func TestChangeEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")
	f.account(t, "taken@example.com", "b")

	token, err := f.svc.Accounts.GenerateEmailChangeToken(a, "taken@example.com", 0)
	require.NoError(t, err)
	ok, err := f.svc.Accounts.ChangeEmail(ctx, a, token)
	require.NoError(t, err)
	assert.False(t, ok, "address held by another account")
	assert.Equal(t, "a@example.com", a.Email)

	_, err = f.svc.Accounts.GenerateEmailChangeToken(a, "not an email", 0)
	assert.True(t, errors.Is(err, ErrValidation))

	token, err = f.svc.Accounts.GenerateEmailChangeToken(a, "New@Example.com", 0)
	require.NoError(t, err)
	ok, err = f.svc.Accounts.ChangeEmail(ctx, a, token)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.svc.Accounts.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, models.EmailHash("new@example.com"), got.AvatarHash)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")

	require.NoError(t, f.svc.Accounts.UpdateProfile(ctx, a, Profile{Name: "Ann", Location: "Oslo", AboutMe: "hi"}))
	got, err := f.svc.Accounts.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, "Oslo", got.Location)

	err = f.svc.Accounts.UpdateProfile(ctx, a, Profile{Location: strings.Repeat("x", 65)})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestAdminUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")
	f.account(t, "b@example.com", "b")

	roles, err := f.svc.Roles.List(ctx)
	require.NoError(t, err)
	var moderator models.Role
	for _, r := range roles {
		if r.Name == models.RoleModerator {
			moderator = r
		}
	}

	updated, err := f.svc.Accounts.Update(ctx, a.ID, AccountUpdate{
		Email:     "a@example.com",
		Username:  "ann",
		Confirmed: true,
		RoleID:    moderator.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "ann", updated.Username)
	assert.True(t, updated.Can(models.PermModerateComments))

	_, err = f.svc.Accounts.Update(ctx, a.ID, AccountUpdate{Email: "b@example.com", Username: "ann", RoleID: moderator.ID})
	assert.True(t, errors.Is(err, ErrConflict), "err = %v", err)

	_, err = f.svc.Accounts.Update(ctx, a.ID, AccountUpdate{Email: "a@example.com", Username: "ann", RoleID: 999})
	assert.True(t, errors.Is(err, ErrValidation), "err = %v", err)

	_, err = f.svc.Accounts.Update(ctx, 999, AccountUpdate{Email: "z@example.com", Username: "z", RoleID: moderator.ID})
	assert.True(t, errors.Is(err, ErrNotFound), "err = %v", err)
}

func TestListAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		f.account(t, name+"@example.com", name)
	}

	accounts, pg, err := f.svc.Accounts.List(ctx, db.NewPage(2, 2, 20))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "c", accounts[0].Username)
	assert.EqualValues(t, 3, pg.Total)
	assert.True(t, pg.HasPrev())
	assert.False(t, pg.HasNext())
}

func TestFollowUnfollow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")
	b := f.account(t, "b@example.com", "b")

	require.NoError(t, f.svc.Follows.Follow(ctx, a, b))
	require.NoError(t, f.svc.Follows.Follow(ctx, a, b), "following twice is a no-op")

	following, err := f.svc.Follows.IsFollowing(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, following)
	followedBy, err := f.svc.Follows.IsFollowedBy(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, followedBy)
	reverse, err := f.svc.Follows.IsFollowing(ctx, b, a)
	require.NoError(t, err)
	assert.False(t, reverse)

	n, err := f.svc.Follows.FollowedCount(ctx, a)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = f.svc.Follows.FollowerCount(ctx, b)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	followers, pg, err := f.svc.Follows.Followers(ctx, b, db.NewPage(1, 10, 10))
	require.NoError(t, err)
	require.Len(t, followers, 1, "self edge is not listed")
	assert.Equal(t, a.ID, followers[0].Follower.ID)
	assert.EqualValues(t, 1, pg.Total)

	followed, _, err := f.svc.Follows.Followed(ctx, a, db.NewPage(1, 10, 10))
	require.NoError(t, err)
	require.Len(t, followed, 1)
	assert.Equal(t, b.ID, followed[0].Followed.ID)

	require.NoError(t, f.svc.Follows.Unfollow(ctx, a, b))
	n, err = f.svc.Follows.FollowedCount(ctx, a)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = f.svc.Follows.FollowerCount(ctx, b)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, f.svc.Follows.Unfollow(ctx, a, a))
	self, err := f.svc.Follows.IsFollowing(ctx, a, a)
	require.NoError(t, err)
	assert.True(t, self, "self edge is permanent")
}

func TestDeleteAccountRemovesExactlyItsEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")
	b := f.account(t, "b@example.com", "b")
	c := f.account(t, "c@example.com", "c")
	require.NoError(t, f.svc.Follows.Follow(ctx, a, b))
	require.NoError(t, f.svc.Follows.Follow(ctx, b, a))
	require.NoError(t, f.svc.Follows.Follow(ctx, b, c))

	follows := db.NewFollowRepository(f.repo)
	total, err := follows.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)

	require.NoError(t, f.svc.Accounts.Delete(ctx, a.ID))

	total, err = follows.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total, "b->b, c->c and b->c remain")
	ok, err := f.svc.Follows.IsFollowing(ctx, b, c)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.Accounts.Get(ctx, a.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(f.svc.Accounts.Delete(ctx, a.ID), ErrNotFound))
}

func TestDeleteAccountCascadesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")
	b := f.account(t, "b@example.com", "b")

	withImage := f.post(t, a, "a's photo", &Image{Filename: "cat.png", Content: strings.NewReader("png"), Size: 3})
	require.True(t, f.store.has(withImage.ImageFile))
	bPost := f.post(t, b, "b's post", nil)

	_, err := f.svc.Comments.Create(ctx, b, withImage, "nice")
	require.NoError(t, err)
	_, err = f.svc.Comments.Create(ctx, a, bPost, "thanks")
	require.NoError(t, err)
	kept, err := f.svc.Comments.Create(ctx, b, bPost, "mine")
	require.NoError(t, err)

	require.NoError(t, f.svc.Accounts.Delete(ctx, a.ID))

	posts := db.NewPostRepository(f.repo)
	n, err := posts.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	comments := db.NewCommentRepository(f.repo)
	n, err = comments.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = f.svc.Comments.Get(ctx, kept.ID)
	assert.NoError(t, err)

	assert.False(t, f.store.has(withImage.ImageFile), "images of deleted posts are removed")
	_, err = f.svc.Accounts.Get(ctx, b.ID)
	assert.NoError(t, err)
}

func TestCreatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")

	p := f.post(t, a, "hello *world* <script>x</script>", nil)
	assert.Contains(t, p.BodyHTML, "<em>world</em>")
	assert.NotContains(t, p.BodyHTML, "<script>")
	assert.False(t, p.HasImage())
	assert.Equal(t, 1, f.pages.n)

	url, err := f.svc.Posts.ImageURL(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, url)

	_, err = f.svc.Posts.Create(ctx, a, "  ", nil)
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = f.svc.Posts.Create(ctx, a, "x", &Image{Filename: "evil.exe", Content: strings.NewReader("")})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestUpdatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")
	p := f.post(t, a, "first", nil)

	require.NoError(t, f.svc.Posts.Update(ctx, p, "**second**"))
	got, err := f.svc.Posts.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "**second**", got.Body)
	assert.Contains(t, got.BodyHTML, "<strong>second</strong>")
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")
	b := f.account(t, "b@example.com", "b")

	p := f.post(t, a, "hello world", &Image{Filename: "foo.png", Content: strings.NewReader("png"), Size: 3})
	other := f.post(t, a, "other", nil)
	_, err := f.svc.Comments.Create(ctx, b, p, "first")
	require.NoError(t, err)
	_, err = f.svc.Comments.Create(ctx, b, other, "second")
	require.NoError(t, err)

	url, err := f.svc.Posts.ImageURL(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+p.ImageFile, url)

	require.NoError(t, f.svc.Posts.Delete(ctx, p))

	assert.False(t, f.store.has(p.ImageFile))
	_, err = f.svc.Posts.Get(ctx, p.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	n, err := db.NewCommentRepository(f.repo).CountByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.Posts.Get(ctx, other.ID)
	assert.NoError(t, err)
	n, err = db.NewCommentRepository(f.repo).CountByPost(ctx, other.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = f.svc.Accounts.Get(ctx, a.ID)
	assert.NoError(t, err)
}

func TestDeletePostSurvivesImageFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")
	p := f.post(t, a, "hello", &Image{Filename: "foo.png", Content: strings.NewReader("png"), Size: 3})

	f.store.deleteErr = errors.New("permission denied")
	require.NoError(t, f.svc.Posts.Delete(ctx, p))
	assert.Equal(t, []string{p.ImageFile}, f.store.deleted)

	_, err := f.svc.Posts.Get(ctx, p.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListingsAndFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")
	b := f.account(t, "b@example.com", "b")
	c := f.account(t, "c@example.com", "c")

	f.post(t, a, "a1", nil)
	f.clock.Advance(time.Second)
	f.post(t, b, "b1", nil)
	f.clock.Advance(time.Second)
	f.post(t, c, "c1", nil)
	f.clock.Advance(time.Second)
	f.post(t, a, "a2", nil)

	all, pg, err := f.svc.Posts.List(ctx, db.NewPage(1, 10, 10))
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "a2", all[0].Body, "newest first")
	assert.EqualValues(t, 4, pg.Total)
	assert.Equal(t, "a", all[0].Author.Username)

	mine, _, err := f.svc.Posts.ListByAuthor(ctx, a, db.NewPage(1, 10, 10))
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	require.NoError(t, f.svc.Follows.Follow(ctx, a, b))
	feed, pg, err := f.svc.Posts.Feed(ctx, a, db.NewPage(1, 10, 10))
	require.NoError(t, err)
	var bodies []string
	for _, p := range feed {
		bodies = append(bodies, p.Body)
	}
	assert.Equal(t, []string{"a2", "b1", "a1"}, bodies)
	assert.EqualValues(t, 3, pg.Total)

	_, err = f.svc.Comments.Create(ctx, b, &all[0], "c")
	require.NoError(t, err)
	counts, err := f.svc.Posts.CommentCounts(ctx, all)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[all[0].ID])
	assert.EqualValues(t, 0, counts[all[1].ID])
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@example.com", "a")
	p := f.post(t, a, "post", nil)

	c1, err := f.svc.Comments.Create(ctx, a, p, "**first**\n\n# big")
	require.NoError(t, err)
	assert.Contains(t, c1.BodyHTML, "<strong>first</strong>")
	assert.NotContains(t, c1.BodyHTML, "<h1>")
	f.clock.Advance(time.Second)
	c2, err := f.svc.Comments.Create(ctx, a, p, "second")
	require.NoError(t, err)

	require.NoError(t, f.svc.Comments.SetDisabled(ctx, c1, true))
	got, err := f.svc.Comments.Get(ctx, c1.ID)
	require.NoError(t, err)
	assert.True(t, got.Disabled)

	list, pg, err := f.svc.Comments.ListForPost(ctx, p, db.NewPage(1, 10, 10))
	require.NoError(t, err)
	require.Len(t, list, 2, "disabled comments are kept")
	assert.Equal(t, c1.ID, list[0].ID, "oldest first")
	assert.EqualValues(t, 2, pg.Total)

	all, _, err := f.svc.Comments.List(ctx, db.NewPage(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, c2.ID, all[0].ID, "newest first")

	require.NoError(t, f.svc.Comments.Delete(ctx, c2))
	_, err = f.svc.Comments.Get(ctx, c2.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = f.svc.Posts.Get(ctx, p.ID)
	assert.NoError(t, err)
	_, err = f.svc.Accounts.Get(ctx, a.ID)
	assert.NoError(t, err)

	_, err = f.svc.Comments.Create(ctx, a, p, "")
	assert.True(t, errors.Is(err, ErrValidation))
}

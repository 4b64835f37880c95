package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"

	"github.com/photoblog/photoblog/internal/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	database, err := Open(sqlite.Open(":memory:"), "ERROR")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := database.DB.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewRepository(database.DB)
}

func seedAccount(t *testing.T, repo *Repository, email, username string) *models.Account {
	t.Helper()
	ctx := context.Background()
	roles := NewRoleRepository(repo)
	role, err := roles.GetByName(ctx, models.RoleUser)
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if role == nil {
		role = &models.Role{Name: models.RoleUser, Default: true, Permissions: models.PermFollow}
		if err := roles.Save(ctx, role); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	now := time.Now().UTC()
	a := &models.Account{Username: username, PasswordHash: "x", RoleID: role.ID, MemberSince: now, LastSeen: now}
	a.SetEmail(email)
	if err := NewAccountRepository(repo).Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return a
}

func TestPagination(t *testing.T) {
	tests := []struct {
		name    string
		page    Page
		total   int64
		pages   int
		offset  int
		hasPrev bool
		hasNext bool
	}{
		{"empty", NewPage(1, 10, 20), 0, 0, 0, false, false},
		{"first of three", NewPage(1, 10, 20), 25, 3, 0, false, true},
		{"last", NewPage(3, 10, 20), 25, 3, 20, true, false},
		{"past the end", NewPage(9, 10, 20), 25, 3, 80, true, false},
		{"clamped number and default size", NewPage(0, 0, 20), 21, 2, 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(tt.page, tt.total)
			if p.Pages() != tt.pages {
				t.Errorf("Pages() = %d, want %d", p.Pages(), tt.pages)
			}
			if tt.page.Offset() != tt.offset {
				t.Errorf("Offset() = %d, want %d", tt.page.Offset(), tt.offset)
			}
			if p.HasPrev() != tt.hasPrev || p.HasNext() != tt.hasNext {
				t.Errorf("HasPrev/HasNext = %v/%v, want %v/%v", p.HasPrev(), p.HasNext(), tt.hasPrev, tt.hasNext)
			}
		})
	}
}

func TestGetReturnsNilWhenMissing(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	a, err := NewAccountRepository(repo).GetByID(ctx, 42)
	if err != nil || a != nil {
		t.Errorf("GetByID() = %v, %v; want nil, nil", a, err)
	}
	p, err := NewPostRepository(repo).GetByID(ctx, 42)
	if err != nil || p != nil {
		t.Errorf("GetByID() = %v, %v; want nil, nil", p, err)
	}
	f, err := NewFollowRepository(repo).Get(ctx, 1, 2)
	if err != nil || f != nil {
		t.Errorf("Get() = %v, %v; want nil, nil", f, err)
	}
}

func TestAccountLookups(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seeded := seedAccount(t, repo, "John@Example.com", "john")

	accounts := NewAccountRepository(repo)
	byEmail, err := accounts.GetByEmail(ctx, " JOHN@example.com")
	if err != nil || byEmail == nil {
		t.Fatalf("GetByEmail() = %v, %v", byEmail, err)
	}
	if byEmail.ID != seeded.ID || byEmail.Role == nil || byEmail.Role.Name != models.RoleUser {
		t.Errorf("GetByEmail() returned %+v", byEmail)
	}
	byName, err := accounts.GetByUsername(ctx, "john")
	if err != nil || byName == nil || byName.ID != seeded.ID {
		t.Errorf("GetByUsername() = %v, %v", byName, err)
	}
}

func TestUniqueEmail(t *testing.T) {
	repo := newTestRepository(t)
	seedAccount(t, repo, "a@example.com", "a")

	now := time.Now()
	dup := &models.Account{Email: "a@example.com", Username: "b", PasswordHash: "x", RoleID: 1, MemberSince: now, LastSeen: now}
	if err := NewAccountRepository(repo).Create(context.Background(), dup); err == nil {
		t.Error("expected unique index violation")
	}
}

func TestWithTxRollsBack(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	a := seedAccount(t, repo, "a@example.com", "a")

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx *Repository) error {
		post := &models.Post{Body: "b", AuthorID: a.ID, CreatedAt: time.Now()}
		if err := NewPostRepository(tx).Create(ctx, post); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}
	n, err := NewPostRepository(repo).Count(ctx)
	if err != nil || n != 0 {
		t.Errorf("Count() = %d, %v; want 0 after rollback", n, err)
	}
}

func TestFollowRepository(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	a := seedAccount(t, repo, "a@example.com", "a")
	b := seedAccount(t, repo, "b@example.com", "b")

	follows := NewFollowRepository(repo)
	now := time.Now()
	for _, f := range []*models.Follow{
		{FollowerID: a.ID, FollowedID: a.ID, CreatedAt: now},
		{FollowerID: b.ID, FollowedID: b.ID, CreatedAt: now},
		{FollowerID: a.ID, FollowedID: b.ID, CreatedAt: now},
	} {
		if err := follows.Create(ctx, f); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if n, _ := follows.CountFollowers(ctx, b.ID); n != 2 {
		t.Errorf("CountFollowers() = %d, want 2", n)
	}
	list, total, err := follows.ListFollowers(ctx, b.ID, NewPage(1, 10, 10))
	if err != nil || total != 1 || len(list) != 1 || list[0].Follower == nil || list[0].Follower.ID != a.ID {
		t.Errorf("ListFollowers() = %v, %d, %v", list, total, err)
	}

	removed, err := follows.Delete(ctx, a.ID, b.ID)
	if err != nil || !removed {
		t.Errorf("Delete() = %v, %v", removed, err)
	}
	removed, err = follows.Delete(ctx, a.ID, b.ID)
	if err != nil || removed {
		t.Errorf("second Delete() = %v, %v", removed, err)
	}
}

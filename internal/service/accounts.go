package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/models"
	"github.com/photoblog/photoblog/pkg/auth"
	"github.com/photoblog/photoblog/pkg/telemetry"
)

// NewAccount is the input of account creation. A zero RoleID selects the
// Administrator role for the configured admin email and the default role
// otherwise.
type NewAccount struct {
	Email     string `json:"email" validate:"required,max=64,email"`
	Username  string `json:"username" validate:"required,max=64,username"`
	Password  string `json:"password" validate:"required"`
	Confirmed bool   `json:"confirmed"`
	RoleID    int64  `json:"role_id"`
	Name      string `json:"name" validate:"max=64"`
	Location  string `json:"location" validate:"max=64"`
	AboutMe   string `json:"about_me"`
}

// Profile holds the fields an account edits about itself
type Profile struct {
	Name     string `json:"name" validate:"max=64"`
	Location string `json:"location" validate:"max=64"`
	AboutMe  string `json:"about_me"`
}

// AccountUpdate is the administrator's full edit of an account
type AccountUpdate struct {
	Email     string `json:"email" validate:"required,max=64,email"`
	Username  string `json:"username" validate:"required,max=64,username"`
	Confirmed bool   `json:"confirmed"`
	RoleID    int64  `json:"role_id" validate:"required"`
	Name      string `json:"name" validate:"max=64"`
	Location  string `json:"location" validate:"max=64"`
	AboutMe   string `json:"about_me"`
}

// AccountService manages accounts and their token flows
type AccountService struct {
	base
}

// Create registers an account together with its self follow edge
func (s *AccountService) Create(ctx context.Context, in NewAccount) (*models.Account, error) {
	ctx, span := telemetry.StartSpan(ctx, "AccountService.Create")
	defer span.End()

	in.Email = models.NormalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, invalid("password", err.Error())
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &models.Account{
		Username:     in.Username,
		PasswordHash: hash,
		Confirmed:    in.Confirmed,
		Name:         in.Name,
		Location:     in.Location,
		AboutMe:      in.AboutMe,
		MemberSince:  now,
		LastSeen:     now,
	}
	account.SetEmail(in.Email)

	err = s.repo.WithTx(ctx, func(tx *db.Repository) error {
		accounts := db.NewAccountRepository(tx)
		if err := s.checkUnique(ctx, accounts, 0, account.Email, account.Username); err != nil {
			return err
		}
		role, err := s.roleFor(ctx, db.NewRoleRepository(tx), in.RoleID, account.Email)
		if err != nil {
			return err
		}
		account.RoleID = role.ID
		if err := accounts.Create(ctx, account); err != nil {
			return err
		}
		account.Role = role
		return db.NewFollowRepository(tx).Create(ctx, &models.Follow{
			FollowerID: account.ID,
			FollowedID: account.ID,
			CreatedAt:  now,
		})
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflict("email or username already in use")
		}
		return nil, err
	}

	s.logger(ctx).Info("Account created",
		zap.Int64("account_id", account.ID),
		zap.String("role", account.Role.Name))
	return account, nil
}

func (s *AccountService) roleFor(ctx context.Context, roles *db.RoleRepository, roleID int64, email string) (*models.Role, error) {
	var (
		role *models.Role
		err  error
	)
	switch {
	case roleID != 0:
		role, err = roles.GetByID(ctx, roleID)
		if err == nil && role == nil {
			return nil, invalid("role_id", "unknown role")
		}
	case s.opts.Security.AdminEmail != "" && email == s.opts.Security.AdminEmail:
		role, err = roles.GetByName(ctx, models.RoleAdministrator)
	default:
		role, err = roles.GetDefault(ctx)
	}
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, errors.New("roles are not initialised")
	}
	return role, nil
}

// checkUnique reports an email or username held by an account other than
// selfID. The unique indexes remain the authority.
func (s *AccountService) checkUnique(ctx context.Context, accounts *db.AccountRepository, selfID int64, email, username string) error {
	existing, err := accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return conflict("email already registered")
	}
	existing, err = accounts.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return conflict("username already in use")
	}
	return nil
}

// Get loads an account with its role
func (s *AccountService) Get(ctx context.Context, id int64) (*models.Account, error) {
	account, err := db.NewAccountRepository(s.repo).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrNotFound
	}
	return account, nil
}

// GetByEmail loads an account by address
func (s *AccountService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	account, err := db.NewAccountRepository(s.repo).GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrNotFound
	}
	return account, nil
}

// Authenticate checks an email and password pair
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	account, err := db.NewAccountRepository(s.repo).GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil || !auth.CheckPassword(password, account.PasswordHash) {
		return nil, ErrUnauthorized
	}
	return account, nil
}

// IssueAuthToken signs an API token for account
func (s *AccountService) IssueAuthToken(account *models.Account) (string, time.Duration, error) {
	ttl := s.opts.Security.AuthTokenTTL
	token, err := s.opts.Tokens.Issue(auth.Payload{AccountID: account.ID, Purpose: auth.PurposeAuth}, ttl)
	if err != nil {
		return "", 0, err
	}
	return token, ttl, nil
}

// VerifyAuthToken returns the account an API token was issued for. It
// returns nil, nil for invalid or expired tokens and for deleted accounts.
func (s *AccountService) VerifyAuthToken(ctx context.Context, token string) (*models.Account, error) {
	p, err := s.opts.Tokens.Verify(token)
	if err != nil || p.Purpose != auth.PurposeAuth {
		return nil, nil
	}
	return db.NewAccountRepository(s.repo).GetByID(ctx, p.AccountID)
}

// Ping records activity of account now
func (s *AccountService) Ping(ctx context.Context, account *models.Account) error {
	account.Ping(s.now())
	return db.NewAccountRepository(s.repo).TouchLastSeen(ctx, account)
}

func (s *AccountService) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.opts.Security.TokenTTL
	}
	return ttl
}

// GenerateConfirmationToken signs a confirmation token for account. A
// non-positive ttl selects the configured token lifetime.
func (s *AccountService) GenerateConfirmationToken(account *models.Account, ttl time.Duration) (string, error) {
	return s.opts.Tokens.Issue(auth.Payload{AccountID: account.ID, Purpose: auth.PurposeConfirm}, s.ttl(ttl))
}

// Confirm marks account confirmed when token was issued for it. Invalid
// tokens report false without an error.
func (s *AccountService) Confirm(ctx context.Context, account *models.Account, token string) (bool, error) {
	if _, ok := s.opts.Tokens.VerifyFor(token, auth.PurposeConfirm, account.ID); !ok {
		return false, nil
	}
	account.Confirmed = true
	if err := db.NewAccountRepository(s.repo).Update(ctx, account); err != nil {
		return false, fmt.Errorf("confirm account: %w", err)
	}
	return true, nil
}

// GenerateResetToken signs a password reset token for account
func (s *AccountService) GenerateResetToken(account *models.Account, ttl time.Duration) (string, error) {
	return s.opts.Tokens.Issue(auth.Payload{AccountID: account.ID, Purpose: auth.PurposeReset}, s.ttl(ttl))
}

// ResetPassword replaces the password of account when token was issued for
// it. Invalid tokens report false without an error.
func (s *AccountService) ResetPassword(ctx context.Context, account *models.Account, token, newPassword string) (bool, error) {
	if _, ok := s.opts.Tokens.VerifyFor(token, auth.PurposeReset, account.ID); !ok {
		return false, nil
	}
	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return false, err
	}
	return true, nil
}

// ChangePassword replaces the password after checking the current one
func (s *AccountService) ChangePassword(ctx context.Context, account *models.Account, oldPassword, newPassword string) error {
	if !auth.CheckPassword(oldPassword, account.PasswordHash) {
		return invalid("old_password", "invalid password")
	}
	return s.setPassword(ctx, account, newPassword)
}

func (s *AccountService) setPassword(ctx context.Context, account *models.Account, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return invalid("password", err.Error())
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	account.PasswordHash = hash
	if err := db.NewAccountRepository(s.repo).Update(ctx, account); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// GenerateEmailChangeToken signs a token moving account to newEmail
func (s *AccountService) GenerateEmailChangeToken(account *models.Account, newEmail string, ttl time.Duration) (string, error) {
	newEmail = models.NormalizeEmail(newEmail)
	if err := s.validate.Var(newEmail, "required,max=64,email"); err != nil {
		return "", invalid("email", "is not a valid email address")
	}
	return s.opts.Tokens.Issue(auth.Payload{
		AccountID: account.ID,
		Purpose:   auth.PurposeChangeEmail,
		NewEmail:  newEmail,
	}, s.ttl(ttl))
}

// ChangeEmail applies the address carried by token. It reports false for
// invalid tokens and for addresses registered to another account.
func (s *AccountService) ChangeEmail(ctx context.Context, account *models.Account, token string) (bool, error) {
	p, ok := s.opts.Tokens.VerifyFor(token, auth.PurposeChangeEmail, account.ID)
	if !ok || p.NewEmail == "" {
		return false, nil
	}
	accounts := db.NewAccountRepository(s.repo)
	existing, err := accounts.GetByEmail(ctx, p.NewEmail)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.ID != account.ID {
		return false, nil
	}
	previous, previousHash := account.Email, account.AvatarHash
	account.SetEmail(p.NewEmail)
	if err := accounts.Update(ctx, account); err != nil {
		account.Email, account.AvatarHash = previous, previousHash
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("change email: %w", err)
	}
	return true, nil
}

// UpdateProfile edits the self-service profile fields
func (s *AccountService) UpdateProfile(ctx context.Context, account *models.Account, p Profile) error {
	if err := s.validate.Struct(p); err != nil {
		return validationError(err)
	}
	account.Name, account.Location, account.AboutMe = p.Name, p.Location, p.AboutMe
	return db.NewAccountRepository(s.repo).Update(ctx, account)
}

// Update is the administrator edit of account id
func (s *AccountService) Update(ctx context.Context, id int64, in AccountUpdate) (*models.Account, error) {
	ctx, span := telemetry.StartSpan(ctx, "AccountService.Update")
	defer span.End()

	in.Email = models.NormalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	var account *models.Account
	err := s.repo.WithTx(ctx, func(tx *db.Repository) error {
		accounts := db.NewAccountRepository(tx)
		var err error
		account, err = accounts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrNotFound
		}
		if err := s.checkUnique(ctx, accounts, id, in.Email, in.Username); err != nil {
			return err
		}
		role, err := db.NewRoleRepository(tx).GetByID(ctx, in.RoleID)
		if err != nil {
			return err
		}
		if role == nil {
			return invalid("role_id", "unknown role")
		}
		account.SetEmail(in.Email)
		account.Username = in.Username
		account.Confirmed = in.Confirmed
		account.RoleID = role.ID
		account.Role = role
		account.Name, account.Location, account.AboutMe = in.Name, in.Location, in.AboutMe
		return accounts.Update(ctx, account)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflict("email or username already in use")
		}
		return nil, err
	}
	return account, nil
}

// List returns a page of accounts ordered by id
func (s *AccountService) List(ctx context.Context, page db.Page) ([]models.Account, db.Pagination, error) {
	accounts, total, err := db.NewAccountRepository(s.repo).List(ctx, page)
	if err != nil {
		return nil, db.Pagination{}, err
	}
	return accounts, db.Paginate(page, total), nil
}

// Delete removes an account with everything it owns: its comments, the
// comments on its posts, its posts and every follow edge touching it.
// Images of the removed posts are deleted once the transaction commits.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	ctx, span := telemetry.StartSpan(ctx, "AccountService.Delete")
	defer span.End()

	var images []string
	err := s.repo.WithTx(ctx, func(tx *db.Repository) error {
		account, err := db.NewAccountRepository(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrNotFound
		}
		posts := db.NewPostRepository(tx)
		if images, err = posts.ImageFilesByAuthor(ctx, id); err != nil {
			return err
		}
		comments := db.NewCommentRepository(tx)
		if err := comments.DeleteByAuthor(ctx, id); err != nil {
			return fmt.Errorf("delete comments by account: %w", err)
		}
		if err := comments.DeleteOnPostsOf(ctx, id); err != nil {
			return fmt.Errorf("delete comments on posts: %w", err)
		}
		if err := posts.DeleteByAuthor(ctx, id); err != nil {
			return fmt.Errorf("delete posts: %w", err)
		}
		if err := db.NewFollowRepository(tx).DeleteForAccount(ctx, id); err != nil {
			return fmt.Errorf("delete follows: %w", err)
		}
		return db.NewAccountRepository(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	for _, name := range images {
		s.deleteImage(ctx, name)
	}
	s.invalidate(ctx)
	s.logger(ctx).Info("Account deleted", zap.Int64("account_id", id), zap.Int("images", len(images)))
	return nil
}

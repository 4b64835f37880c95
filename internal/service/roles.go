package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/photoblog/photoblog/internal/db"
	"github.com/photoblog/photoblog/internal/models"
)

// RoleService keeps the role registry in the database
type RoleService struct {
	base
}

// InsertRoles creates or updates the standard roles. Running it again
// changes nothing.
func (s *RoleService) InsertRoles(ctx context.Context) error {
	return s.repo.WithTx(ctx, func(tx *db.Repository) error {
		roles := db.NewRoleRepository(tx)
		for _, def := range models.StandardRoles() {
			role, err := roles.GetByName(ctx, def.Name)
			if err != nil {
				return err
			}
			if role == nil {
				role = &models.Role{Name: def.Name}
			}
			role.Permissions = def.Permissions
			role.Default = def.Default
			if err := roles.Save(ctx, role); err != nil {
				return err
			}
			s.logger(ctx).Debug("Role ensured",
				zap.String("role", role.Name),
				zap.Stringer("permissions", role.Permissions))
		}
		return nil
	})
}

// List returns every role ordered by name
func (s *RoleService) List(ctx context.Context) ([]models.Role, error) {
	return db.NewRoleRepository(s.repo).List(ctx)
}

// Default returns the role given to new accounts
func (s *RoleService) Default(ctx context.Context) (*models.Role, error) {
	role, err := db.NewRoleRepository(s.repo).GetDefault(ctx)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrNotFound
	}
	return role, nil
}

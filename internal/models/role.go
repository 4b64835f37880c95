package models

import "strings"

// Permission is a single capability bit. Roles combine permissions with
// bitwise OR.
type Permission int64

const (
	PermFollow           Permission = 0x01
	PermComment          Permission = 0x02
	PermWriteArticles    Permission = 0x04
	PermModerateComments Permission = 0x08
	PermAdminister       Permission = 0x80
)

var permissionNames = []struct {
	perm Permission
	name string
}{
	{PermFollow, "FOLLOW"},
	{PermComment, "COMMENT"},
	{PermWriteArticles, "WRITE_ARTICLES"},
	{PermModerateComments, "MODERATE_COMMENTS"},
	{PermAdminister, "ADMINISTER"},
}

// String lists the named bits set in p.
func (p Permission) String() string {
	var names []string
	for _, pn := range permissionNames {
		if p&pn.perm == pn.perm {
			names = append(names, pn.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// Has reports whether every bit of q is set in p.
func (p Permission) Has(q Permission) bool {
	return q != 0 && p&q == q
}

// Role names
const (
	RoleUser          = "User"
	RoleModerator     = "Moderator"
	RoleAdministrator = "Administrator"
)

// Role is a named bundle of permissions
type Role struct {
	ID          int64      `gorm:"primaryKey;autoIncrement;column:id"`
	Name        string     `gorm:"type:varchar(64);not null;uniqueIndex:roles_name_ux;column:name"`
	Default     bool       `gorm:"not null;default:false;index;column:is_default"`
	Permissions Permission `gorm:"not null;default:0;column:permissions"`
}

// TableName specifies the table name for Role
func (Role) TableName() string {
	return "roles"
}

// RoleDefinition describes a role the registry keeps in the database.
type RoleDefinition struct {
	Name        string
	Permissions Permission
	Default     bool
}

// StandardRoles returns the roles every installation has. Exactly one of
// them is the default.
func StandardRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Name:        RoleUser,
			Permissions: PermFollow | PermComment | PermWriteArticles,
			Default:     true,
		},
		{
			Name:        RoleModerator,
			Permissions: PermFollow | PermComment | PermWriteArticles | PermModerateComments,
		},
		{
			Name:        RoleAdministrator,
			Permissions: 0xff,
		},
	}
}

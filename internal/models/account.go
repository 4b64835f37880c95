package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Principal is whoever issues a request: a registered account or an
// anonymous visitor.
type Principal interface {
	Can(p Permission) bool
	IsAdministrator() bool
	IsAnonymous() bool
}

// Account represents a registered user
type Account struct {
	ID           int64  `gorm:"primaryKey;autoIncrement;column:id"`
	Email        string `gorm:"type:varchar(64);not null;uniqueIndex:accounts_email_ux;column:email"`
	Username     string `gorm:"type:varchar(64);not null;uniqueIndex:accounts_username_ux;column:username"`
	PasswordHash string `gorm:"type:varchar(128);not null;column:password_hash"`
	Confirmed    bool   `gorm:"not null;default:false;column:confirmed"`
	RoleID       int64  `gorm:"not null;index;column:role_id"`

	// Profile fields
	Name       string `gorm:"type:varchar(64);not null;default:'';column:name"`
	Location   string `gorm:"type:varchar(64);not null;default:'';column:location"`
	AboutMe    string `gorm:"type:text;not null;default:'';column:about_me"`
	AvatarHash string `gorm:"type:varchar(32);not null;default:'';column:avatar_hash"`

	// Activity tracking
	MemberSince time.Time `gorm:"not null;column:member_since"`
	LastSeen    time.Time `gorm:"not null;column:last_seen"`

	// Relationships
	Role *Role `gorm:"foreignKey:RoleID;references:ID"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}

// Can reports whether the account's role grants p.
func (a *Account) Can(p Permission) bool {
	if a == nil || a.Role == nil {
		return false
	}
	return a.Role.Permissions.Has(p)
}

// IsAdministrator reports whether the account holds the ADMINISTER bit.
func (a *Account) IsAdministrator() bool {
	return a.Can(PermAdminister)
}

// IsAnonymous is always false for a registered account.
func (a *Account) IsAnonymous() bool {
	return false
}

// Ping records activity at now.
func (a *Account) Ping(now time.Time) {
	a.LastSeen = now
}

// SetEmail replaces the email and keeps the avatar hash in step with it.
func (a *Account) SetEmail(email string) {
	a.Email = NormalizeEmail(email)
	a.AvatarHash = EmailHash(a.Email)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailHash is the Gravatar identifier of an email: the hex md5 of the
// normalized address.
func EmailHash(email string) string {
	sum := md5.Sum([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}

// GravatarOptions tunes the avatar reference. Zero values select the
// Gravatar defaults used by the site.
type GravatarOptions struct {
	Size    int
	Default string
	Rating  string
	Secure  bool
}

// Gravatar returns the avatar URL of the account. It performs no I/O.
func (a *Account) Gravatar(opts GravatarOptions) string {
	base := "http://www.gravatar.com/avatar"
	if opts.Secure {
		base = "https://secure.gravatar.com/avatar"
	}
	if opts.Size <= 0 {
		opts.Size = 100
	}
	if opts.Default == "" {
		opts.Default = "identicon"
	}
	if opts.Rating == "" {
		opts.Rating = "g"
	}
	hash := a.AvatarHash
	if hash == "" {
		hash = EmailHash(a.Email)
	}
	return fmt.Sprintf("%s/%s?s=%d&d=%s&r=%s",
		base, hash, opts.Size, url.QueryEscape(opts.Default), url.QueryEscape(opts.Rating))
}

// Anonymous is the principal of unauthenticated requests. It holds no
// permission.
type Anonymous struct{}

// Can is always false.
func (Anonymous) Can(Permission) bool { return false }

// IsAdministrator is always false.
func (Anonymous) IsAdministrator() bool { return false }

// IsAnonymous is always true.
func (Anonymous) IsAnonymous() bool { return true }

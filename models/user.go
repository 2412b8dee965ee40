package models

import (
	"errors"

	"gorm.io/gorm"
)

type AuthProvider string

const (
	AuthProviderEmail    AuthProvider = "email"
	AuthProviderGoogle   AuthProvider = "google"
	AuthProviderApple    AuthProvider = "apple"
	AuthProviderFacebook AuthProvider = "facebook"
)

func (p AuthProvider) Valid() bool {
	switch p {
	case AuthProviderEmail, AuthProviderGoogle, AuthProviderApple, AuthProviderFacebook:
		return true
	}
	return false
}

// IsOAuth reports whether the provider hands us an external identity instead
// of a password.
func (p AuthProvider) IsOAuth() bool {
	return p.Valid() && p != AuthProviderEmail
}

var (
	ErrPasswordRequired  = errors.New("email accounts require a password hash")
	ErrPasswordForbidden = errors.New("oauth accounts must not carry a password hash")
	ErrProviderIDMissing = errors.New("oauth accounts require a provider id")
)

// User is an account, either email/password or one OAuth identity.
// (auth_provider, auth_provider_id) is unique; email users keep a NULL
// provider id so the index only constrains OAuth identities.
type User struct {
	ID             string       `json:"id" gorm:"primaryKey;size:36"`
	Email          string       `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Name           string       `json:"name" gorm:"size:100;not null"`
	PasswordHash   *string      `json:"-" gorm:"size:255"`
	AuthProvider   AuthProvider `json:"auth_provider" gorm:"size:20;not null;default:email;uniqueIndex:idx_users_provider_identity"`
	AuthProviderID *string      `json:"-" gorm:"size:255;uniqueIndex:idx_users_provider_identity"`
	AvatarURL      *string      `json:"avatar_url"`

	Timestamps

	Sessions []GameSession `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.AuthProvider == "" {
		u.AuthProvider = AuthProviderEmail
	}
	if u.AuthProvider == AuthProviderEmail {
		if u.PasswordHash == nil || *u.PasswordHash == "" {
			return ErrPasswordRequired
		}
		return nil
	}
	if u.PasswordHash != nil {
		return ErrPasswordForbidden
	}
	if u.AuthProviderID == nil || *u.AuthProviderID == "" {
		return ErrProviderIDMissing
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"strings"
	"unicode"

	"speech-practice/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 100
)

// AuthService owns user accounts: email/password registration, login,
// social login and token refresh.
type AuthService struct {
	DB     *gorm.DB
	Tokens *TokenIssuer
	// SocialVerifier backs token-based social login; nil disables it.
	SocialVerifier SocialTokenVerifier

	// BcryptCost defaults to bcrypt.DefaultCost; tests lower it.
	BcryptCost int
}

func NewAuthService(db *gorm.DB, tokens *TokenIssuer) *AuthService {
	return &AuthService{DB: db, Tokens: tokens, BcryptCost: bcrypt.DefaultCost}
}

type AuthResult struct {
	User   *models.User `json:"user"`
	Tokens *TokenPair   `json:"tokens"`
	// Created is set when a social login provisioned a new account.
	Created bool `json:"created"`
}

// SocialIdentity is a provider identity that has already been verified,
// either by the gateway or by a SocialTokenVerifier.
type SocialIdentity struct {
	Provider       models.AuthProvider `json:"provider"`
	ProviderUserID string              `json:"provider_user_id"`
	Email          string              `json:"email"`
	Name           string              `json:"name"`
	AvatarURL      *string             `json:"avatar_url"`
}

func normalizeEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return email, false
	}
	return email, true
}

func validatePassword(pw string) []string {
	var issues []string
	if len(pw) < minPasswordLength || len(pw) > maxPasswordLength {
		issues = append(issues, "password must be between 8 and 100 characters")
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		issues = append(issues, "password must contain an uppercase letter, a lowercase letter and a digit")
	}
	return issues
}

func validateName(name string) string {
	if name == "" || len(name) > 100 {
		return "name must be between 1 and 100 characters"
	}
	return ""
}

func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email, ok := normalizeEmail(email)
	name = strings.TrimSpace(name)

	var issues []string
	if !ok {
		issues = append(issues, "email is not a valid address")
	}
	issues = append(issues, validatePassword(password)...)
	if msg := validateName(name); msg != "" {
		issues = append(issues, msg)
	}
	if len(issues) > 0 {
		return nil, Validation("invalid registration", issues...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return nil, Infrastructure("failed to hash password", err)
	}
	hashed := string(hash)
	user := &models.User{Email: email, Name: name, PasswordHash: &hashed, AuthProvider: models.AuthProviderEmail}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return Conflict("email %s is already registered", email)
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, wrapDBError("failed to register user", err)
	}
	log.Printf("✅ [Auth] Registered user %s", user.ID)
	return s.issue(user, true)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email, _ = normalizeEmail(email)

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Unauthorized("invalid email or password")
		}
		return nil, Infrastructure("failed to load user", err)
	}
	if user.AuthProvider.IsOAuth() || user.PasswordHash == nil {
		return nil, Unauthorized("this account uses social login")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		log.Printf("🚫 [Auth] Failed login for user %s", user.ID)
		return nil, Unauthorized("invalid email or password")
	}
	return s.issue(&user, false)
}

// SocialLogin finds the account bound to the provider identity or creates
// one. An email already owned by a different provider is a Conflict, so one
// address never maps to two accounts.
func (s *AuthService) SocialLogin(ctx context.Context, id SocialIdentity) (*AuthResult, error) {
	email, ok := normalizeEmail(id.Email)
	name := strings.TrimSpace(id.Name)
	providerID := strings.TrimSpace(id.ProviderUserID)

	var issues []string
	if !id.Provider.IsOAuth() {
		issues = append(issues, "provider must be one of google, apple, facebook")
	}
	if providerID == "" {
		issues = append(issues, "provider_user_id is required")
	}
	if !ok {
		issues = append(issues, "email is not a valid address")
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	if msg := validateName(name); msg != "" {
		issues = append(issues, msg)
	}
	if len(issues) > 0 {
		return nil, Validation("invalid social identity", issues...)
	}

	var user models.User
	created := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("auth_provider = ? AND auth_provider_id = ?", id.Provider, providerID).First(&user).Error
		if err == nil {
			if id.AvatarURL != nil && (user.AvatarURL == nil || *user.AvatarURL != *id.AvatarURL) {
				user.AvatarURL = id.AvatarURL
				return tx.Model(&user).Update("avatar_url", id.AvatarURL).Error
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var other models.User
		err = tx.Where("email = ?", email).First(&other).Error
		if err == nil {
			return Conflict("email %s is already registered with %s", email, other.AuthProvider)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user = models.User{
			Email:          email,
			Name:           name,
			AuthProvider:   id.Provider,
			AuthProviderID: &providerID,
			AvatarURL:      id.AvatarURL,
		}
		created = true
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, wrapDBError("failed social login", err)
	}
	if created {
		log.Printf("✅ [Auth] Provisioned %s user %s", id.Provider, user.ID)
	}
	return s.issue(&user, created)
}

// Refresh exchanges a refresh token for a new pair. The user must still
// exist.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	userID, err := s.Tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Unauthorized("user no longer exists")
		}
		return nil, Infrastructure("failed to load user", err)
	}
	return s.issue(&user, false)
}

// Authenticate verifies an access token and returns its user id.
func (s *AuthService) Authenticate(accessToken string) (string, error) {
	return s.Tokens.Verify(accessToken, TokenTypeAccess)
}

func (s *AuthService) issue(user *models.User, created bool) (*AuthResult, error) {
	pair, err := s.Tokens.Issue(user.ID)
	if err != nil {
		return nil, Infrastructure("failed to issue tokens", err)
	}
	return &AuthResult{User: user, Tokens: pair, Created: created}, nil
}

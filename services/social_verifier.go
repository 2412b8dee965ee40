package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"speech-practice/models"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// SocialTokenVerifier exchanges a provider access token for the identity it
// belongs to.
type SocialTokenVerifier interface {
	Verify(ctx context.Context, provider models.AuthProvider, accessToken string) (*SocialIdentity, error)
}

// GoogleUserInfoVerifier checks Google access tokens against the OpenID
// userinfo endpoint. Apple and Facebook tokens still go through the gateway
// route.
type GoogleUserInfoVerifier struct {
	Client   *http.Client
	Endpoint string
}

func NewGoogleUserInfoVerifier(client *http.Client) *GoogleUserInfoVerifier {
	return &GoogleUserInfoVerifier{Client: client, Endpoint: googleUserInfoURL}
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (v *GoogleUserInfoVerifier) Verify(ctx context.Context, provider models.AuthProvider, accessToken string) (*SocialIdentity, error) {
	if provider != models.AuthProviderGoogle {
		return nil, Validation("unsupported social provider", fmt.Sprintf("token login is not available for %s", provider))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.Endpoint, nil)
	if err != nil {
		return nil, Infrastructure("failed to build userinfo request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := v.Client.Do(req)
	if err != nil {
		log.Printf("❌ [Social] Google userinfo call failed: %v", err)
		return nil, ProcessingFailure("could not verify social token", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, ProcessingFailure("could not verify social token", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, Unauthorized("invalid social token")
	case resp.StatusCode != http.StatusOK:
		return nil, ProcessingFailure("could not verify social token", fmt.Errorf("google userinfo: status %d", resp.StatusCode))
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, ProcessingFailure("could not verify social token", fmt.Errorf("google userinfo: %w", err))
	}
	if info.Sub == "" || info.Email == "" {
		return nil, Unauthorized("invalid social token")
	}
	if !info.EmailVerified {
		return nil, Unauthorized("social account email is not verified")
	}

	id := &SocialIdentity{
		Provider:       models.AuthProviderGoogle,
		ProviderUserID: info.Sub,
		Email:          info.Email,
		Name:           info.Name,
	}
	if info.Picture != "" {
		id.AvatarURL = &info.Picture
	}
	return id, nil
}

// SocialLoginWithToken verifies a provider access token and then logs in or
// provisions the matching account.
func (s *AuthService) SocialLoginWithToken(ctx context.Context, provider models.AuthProvider, accessToken string) (*AuthResult, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, Validation("invalid social login", "access_token is required")
	}
	if s.SocialVerifier == nil {
		return nil, Unauthorized("social token login is not configured")
	}
	id, err := s.SocialVerifier.Verify(ctx, provider, accessToken)
	if err != nil {
		return nil, err
	}
	return s.SocialLogin(ctx, *id)
}

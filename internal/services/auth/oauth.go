// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	ProviderGitHub = "github"

	stateIssuer = "productscan"
	stateExpiry = 10 * time.Minute
)

var ErrInvalidState = errors.New("invalid oauth state")

type stateClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

// OAuthProfile is the identity reported by the provider.
type OAuthProfile struct {
	Provider string
	Subject  string
	Login    string
	Email    string
}

// OAuthVerifier logs users in through GitHub's authorization code flow.
type OAuthVerifier struct {
	config     *oauth2.Config
	apiURL     string
	signingKey []byte
	accounts   *Service
}

var _ Verifier = (*OAuthVerifier)(nil)

// OAuthOption configures an OAuthVerifier.
type OAuthOption func(*OAuthVerifier)

// WithEndpoints overrides the GitHub OAuth and API URLs.
func WithEndpoints(authURL, tokenURL, apiURL string) OAuthOption {
	return func(v *OAuthVerifier) {
		v.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
		v.apiURL = strings.TrimSuffix(apiURL, "/")
	}
}

// NewGitHubVerifier creates a verifier. A nil signingKey is replaced by a
// random one.
func NewGitHubVerifier(accounts *Service, clientID, clientSecret, redirectURL string, signingKey []byte, opts ...OAuthOption) (*OAuthVerifier, error) {
	if len(signingKey) == 0 {
		signingKey = make([]byte, 32)
		if _, err := rand.Read(signingKey); err != nil {
			return nil, fmt.Errorf("failed to generate state key: %w", err)
		}
	}

	v := &OAuthVerifier{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiURL:     "https://api.github.com",
		signingKey: signingKey,
		accounts:   accounts,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// NewState returns a signed state value and the nonce it is bound to. The
// nonce belongs in a short-lived cookie.
func (v *OAuthVerifier) NewState() (state, nonce string, err error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce = hex.EncodeToString(b)

	now := time.Now()
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateExpiry)),
		},
		Nonce: nonce,
	}

	state, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign state: %w", err)
	}
	return state, nonce, nil
}

// ValidateState checks the signature and expiry of state and that it was
// issued together with nonce.
func (v *OAuthVerifier) ValidateState(state, nonce string) error {
	if state == "" || nonce == "" {
		return ErrInvalidState
	}

	token, err := jwt.ParseWithClaims(state, &stateClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidState
		}
		return v.signingKey, nil
	}, jwt.WithIssuer(stateIssuer))
	if err != nil {
		return ErrInvalidState
	}

	claims, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid || subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(nonce)) != 1 {
		return ErrInvalidState
	}
	return nil
}

// StateExpiry is the lifetime of the state nonce cookie.
func (v *OAuthVerifier) StateExpiry() time.Duration {
	return stateExpiry
}

// AuthCodeURL returns the provider URL the browser is redirected to.
func (v *OAuthVerifier) AuthCodeURL(state string) string {
	return v.config.AuthCodeURL(state)
}

// Verify exchanges creds.Code for a token, fetches the GitHub profile and
// returns the linked user, creating one on first login.
func (v *OAuthVerifier) Verify(ctx context.Context, creds Credentials) (*models.User, error) {
	if creds.Code == "" {
		return nil, ErrInvalidCredentials
	}

	token, err := v.config.Exchange(ctx, creds.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	profile, err := v.fetchProfile(ctx, v.config.Client(ctx, token))
	if err != nil {
		return nil, err
	}

	return v.accounts.FindOrCreateOAuthUser(ctx, profile)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (v *OAuthVerifier) fetchProfile(ctx context.Context, client *http.Client) (OAuthProfile, error) {
	var user githubUser
	if err := v.getJSON(ctx, client, "/user", &user); err != nil {
		return OAuthProfile{}, err
	}
	if user.ID == 0 || user.Login == "" {
		return OAuthProfile{}, errors.New("github profile is incomplete")
	}

	profile := OAuthProfile{
		Provider: ProviderGitHub,
		Subject:  strconv.FormatInt(user.ID, 10),
		Login:    user.Login,
		Email:    user.Email,
	}

	if profile.Email == "" {
		var emails []githubEmail
		if err := v.getJSON(ctx, client, "/user/emails", &emails); err != nil {
			slog.Warn("github_emails_failed", "error", err)
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				profile.Email = e.Email
				break
			}
		}
	}
	if profile.Email == "" {
		profile.Email = fmt.Sprintf("%s+%s@users.noreply.github.com", profile.Subject, profile.Login)
	}

	return profile, nil
}

func (v *OAuthVerifier) getJSON(ctx context.Context, client *http.Client, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call github: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode github response: %w", err)
	}
	return nil
}

// FindOrCreateOAuthUser returns the user linked to profile. New users get a
// random password, a verified address and a unique username.
func (s *Service) FindOrCreateOAuthUser(ctx context.Context, profile OAuthProfile) (*models.User, error) {
	user, err := s.repo.GetUserByOAuth(ctx, profile.Provider, profile.Subject)
	if err == nil {
		if user.IsDeleted() {
			return nil, ErrInvalidCredentials
		}
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up oauth user: %w", err)
	}

	username, err := s.uniqueUsername(ctx, profile.Login)
	if err != nil {
		return nil, err
	}

	email := profile.Email
	if err := s.ensureAvailable(ctx, 0, "", email); err != nil {
		email = fmt.Sprintf("%s+%s@users.noreply.%s.invalid", profile.Subject, username, profile.Provider)
	}

	plain, _, err := NewToken()
	if err != nil {
		return nil, err
	}
	passwordHash, err := hashPassword(plain)
	if err != nil {
		return nil, err
	}

	user = &models.User{
		Username:      username,
		Email:         email,
		PasswordHash:  passwordHash,
		IsVerified:    true,
		Role:          models.RoleUser,
		OAuthProvider: profile.Provider,
		OAuthSubject:  profile.Subject,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create oauth user: %w", err)
	}

	slog.Info("register_success", "user_id", user.ID, "username", user.Username, "provider", profile.Provider)
	return user, nil
}

func (s *Service) uniqueUsername(ctx context.Context, login string) (string, error) {
	base := sanitizeUsername(login)
	candidate := base
	for i := 1; i <= 100; i++ {
		_, err := s.repo.GetUserByUsername(ctx, candidate)
		if errors.Is(err, repository.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", ErrUserExists
}

func sanitizeUsername(login string) string {
	var sb strings.Builder
	for _, r := range login {
		if r < 128 && (r == '_' || r == '.' || r == '-' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')) {
			sb.WriteRune(r)
		}
	}
	name := sb.String()
	if len(name) > 28 {
		name = name[:28]
	}
	for len(name) < 3 {
		name += "_"
	}
	return name
}

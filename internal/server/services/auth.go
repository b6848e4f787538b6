// Package services contains the server-side business logic behind the HTTP
// API: logins, evaluation intake, reference data and export URLs.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/cryptox"
	"github.com/dmitrijs2005/inspectsync/internal/server/auth"
	"github.com/dmitrijs2005/inspectsync/internal/server/config"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/repomanager"
)

// NewUser is the input of Register.
type NewUser struct {
	CompanyID int64
	Name      string
	Email     string
	Role      string
	Password  string
}

// AuthService checks credentials and issues access tokens.
type AuthService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	jwtSecret     []byte
	tokenValidity time.Duration

	// used for unknown logins so they cost as much as wrong passwords
	dummySalt, dummyVerifier []byte
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *AuthService {
	salt, verifier := cryptox.NewCredential(string(common.GenerateRandByteArray(16)))
	return &AuthService{
		db:            db,
		repomanager:   m,
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.TokenValidityDuration,
		dummySalt:     salt,
		dummyVerifier: verifier,
	}
}

// Login verifies email and password and returns a fresh token with the
// user's profile. Wrong credentials yield common.ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (*api.LoginResponse, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			cryptox.CheckPassword(password, s.dummySalt, s.dummyVerifier)
			return nil, common.ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	if !cryptox.CheckPassword(password, user.Salt, user.Verifier) {
		return nil, common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(auth.Principal{UserID: user.ID, CompanyID: user.CompanyID, Role: user.Role},
		s.jwtSecret, s.tokenValidity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	return &api.LoginResponse{Token: token, User: user.API()}, nil
}

// Authenticate returns the principal of a bearer token.
func (s *AuthService) Authenticate(token string) (auth.Principal, error) {
	return auth.ParseToken(token, s.jwtSecret)
}

// Register creates a user with a fresh credential.
func (s *AuthService) Register(ctx context.Context, in NewUser) (*models.User, error) {
	if in.Role == "" {
		in.Role = models.RoleEvaluator
	}
	salt, verifier := cryptox.NewCredential(in.Password)

	user := &models.User{
		CompanyID: in.CompanyID,
		Name:      in.Name,
		Email:     normalizeEmail(in.Email),
		Role:      in.Role,
		Salt:      salt,
		Verifier:  verifier,
	}
	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// EnsureUser registers in unless a user with its email exists already.
func (s *AuthService) EnsureUser(ctx context.Context, in NewUser) (*models.User, bool, error) {
	u, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(in.Email))
	switch {
	case err == nil:
		return u, false, nil
	case !errors.Is(err, common.ErrNotFound):
		return nil, false, err
	}

	u, err = s.Register(ctx, in)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

package admins

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stayhq-ng/hostelpay-backend/pkg/auth"
	"github.com/stayhq-ng/hostelpay-backend/pkg/config"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
	"github.com/stayhq-ng/hostelpay-backend/pkg/security"
)

// ServiceParams groups dependencies for the admin service.
type ServiceParams struct {
	Repo     Repository
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service authenticates back-office operators.
type Service struct {
	repo        Repository
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds an admin service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:        params.Repo,
		jwtCfg:      params.JWT,
		passwordCfg: params.Password,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// LoginResult carries the minted token and the authenticated admin.
type LoginResult struct {
	Token string            `json:"token"`
	Admin *models.AdminUser `json:"admin"`
}

// Login verifies credentials and mints an access token. Unknown emails and
// bad passwords return the same error so the response does not reveal which
// accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	admin, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find admin")
	}
	if admin == nil || !admin.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(password, admin.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := s.now()
	token, err := auth.MintAccessToken(s.jwtCfg, now, auth.AccessTokenPayload{
		AdminID: admin.ID,
		Email:   admin.Email,
		Role:    admin.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token")
	}

	if err := s.repo.TouchLastLogin(ctx, admin.ID, now); err != nil {
		s.logg.Error(ctx, "admins.last_login.update", err)
	}

	logCtx := s.logg.WithEmail(ctx, admin.Email)
	s.logg.Info(logCtx, "admins.login")

	admin.PasswordHash = ""
	return &LoginResult{Token: token, Admin: admin}, nil
}

// CreateAdmin registers a back-office operator with a hashed password.
func (s *Service) CreateAdmin(ctx context.Context, admin *models.AdminUser, password string) error {
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	if admin.Email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(password) < 8 {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if !admin.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid admin role")
	}

	existing, err := s.repo.FindByEmail(ctx, admin.Email)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find admin")
	}
	if existing != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "admin already exists")
	}

	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	admin.PasswordHash = hash
	admin.IsActive = true

	if err := s.repo.Create(ctx, admin); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist admin")
	}
	return nil
}

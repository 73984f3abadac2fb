package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"workflow-backend/internal/auth"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotConfigured      = errors.New("admin auth not configured")
)

// EnvAdmin is the bootstrap account from the environment. It only applies
// when the username has no stored user.
type EnvAdmin struct {
	Username string
	Password string
}

type Tokens struct {
	Access  string
	Refresh string
}

type Service struct {
	repo     Repository
	manager  *auth.Manager
	fallback EnvAdmin
	location *time.Location
}

func NewService(repo Repository, manager *auth.Manager, fallback EnvAdmin, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		manager:  manager,
		fallback: fallback,
		location: location,
	}
}

func (s *Service) Manager() *auth.Manager {
	return s.manager
}

func (s *Service) Login(ctx context.Context, username, password string) (Tokens, error) {
	if s.manager == nil {
		return Tokens{}, ErrNotConfigured
	}
	username = normalizeUsername(username)

	user, err := s.repo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if auth.ComparePassword(user.PasswordHash, password) != nil || user.Role != auth.RoleAdmin {
			return Tokens{}, ErrInvalidCredentials
		}
		return s.issue(user.ID)
	case errors.Is(err, ErrUserNotFound):
		if s.fallback.Password == "" || username != normalizeUsername(s.fallback.Username) {
			return Tokens{}, ErrInvalidCredentials
		}
		if subtle.ConstantTimeCompare([]byte(password), []byte(s.fallback.Password)) != 1 {
			return Tokens{}, ErrInvalidCredentials
		}
		return s.issue("env:" + username)
	default:
		return Tokens{}, err
	}
}

// Refresh rotates both tokens from a valid refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if s.manager == nil {
		return Tokens{}, ErrNotConfigured
	}
	claims, err := s.manager.ParseRefresh(refreshToken)
	if err != nil || claims.Role != auth.RoleAdmin {
		return Tokens{}, ErrInvalidCredentials
	}
	if !strings.HasPrefix(claims.Subject, "env:") {
		if _, err := s.repo.FindByID(ctx, claims.Subject); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return Tokens{}, ErrInvalidCredentials
			}
			return Tokens{}, err
		}
	}
	return s.issue(claims.Subject)
}

func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (User, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return User{}, err
	}
	now := time.Now().In(s.location)
	user := User{
		ID:           primitive.NewObjectID().Hex(),
		Username:     normalizeUsername(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Service) issue(subject string) (Tokens, error) {
	access, err := s.manager.NewAccessToken(subject, auth.RoleAdmin)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := s.manager.NewRefreshToken(subject, auth.RoleAdmin)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{Access: access, Refresh: refresh}, nil
}

func normalizeUsername(username string) string {
	username = strings.TrimSpace(username)
	if strings.Contains(username, "@") {
		username = strings.ToLower(username)
	}
	return username
}

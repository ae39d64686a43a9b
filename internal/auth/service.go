package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/khata-app/khata/internal/shared"
)

// WelcomeEnqueuer schedules the welcome mail for a freshly registered user.
type WelcomeEnqueuer interface {
	EnqueueWelcome(ctx context.Context, email, name string) error
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ProfileImageURL string
}

// Session is the outcome of a successful login.
type Session struct {
	User      *User
	Token     string
	ExpiresAt time.Time
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   *JWTManager
	denylist Denylist
	welcome  WelcomeEnqueuer
	logger   *slog.Logger
	cost     int
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithDenylist enables server-side token revocation.
func WithDenylist(d Denylist) Option {
	return func(s *Service) { s.denylist = d }
}

// WithWelcomeEnqueuer enables welcome mail jobs on registration.
func WithWelcomeEnqueuer(w WelcomeEnqueuer) Option {
	return func(s *Service) { s.welcome = w }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *JWTManager, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		tokens: tokens,
		logger: slog.Default(),
		cost:   bcrypt.DefaultCost,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account with a hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := &User{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(in.Name),
		Email:           normalizeEmail(in.Email),
		PasswordHash:    string(hash),
		ProfileImageURL: strings.TrimSpace(in.ProfileImageURL),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", slog.String("user_id", user.ID))
	if s.welcome != nil {
		if err := s.welcome.EnqueueWelcome(ctx, user.Email, user.Name); err != nil {
			s.logger.Warn("enqueue welcome mail", slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}
	return user, nil
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a signed credential.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	token, claims, err := s.tokens.Generate(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Identify verifies a credential and loads the user it names.
func (s *Service) Identify(ctx context.Context, token string) (*User, *Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, nil, err
	}
	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, nil, fmt.Errorf("%w: token revoked", shared.ErrUnauthorized)
		}
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: user no longer exists", shared.ErrUnauthorized)
		}
		return nil, nil, err
	}
	return user, claims, nil
}

// Logout revokes a credential until its expiry. Invalid or expired tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" || s.denylist == nil {
		return nil
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

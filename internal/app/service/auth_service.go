package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"tle_zone_judge/internal/common"
	"tle_zone_judge/internal/common/security"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/domain/repository"
	"tle_zone_judge/internal/platform/logger"

	"github.com/google/uuid"
)

const minPasswordLength = 8

type AuthService struct {
	userRepo       repository.UserRepository
	submissionRepo repository.SubmissionRepository
	blocklist      repository.TokenBlocklist
	tokens         *security.TokenIssuer
	log            *slog.Logger
	now            func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	submissionRepo repository.SubmissionRepository,
	blocklist repository.TokenBlocklist,
	tokens *security.TokenIssuer,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:       userRepo,
		submissionRepo: submissionRepo,
		blocklist:      blocklist,
		tokens:         tokens,
		log:            log,
		now:            time.Now,
	}
}

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return s.register(ctx, req, model.RoleUser)
}

// RegisterAdmin creates an admin account. Callers must already be admins.
func (s *AuthService) RegisterAdmin(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return s.register(ctx, req, model.RoleAdmin)
}

func (s *AuthService) register(ctx context.Context, req RegisterRequest, role string) (*AuthResponse, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.FirstName == "" || req.Email == "" || req.Password == "" {
		return nil, common.Errorf("first_name, email and password are required: %w", common.ErrBadRequest)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, common.Errorf("invalid email %q: %w", req.Email, common.ErrBadRequest)
	}
	if len(req.Password) < minPasswordLength {
		return nil, common.Errorf("password must be at least %d characters: %w", minPasswordLength, common.ErrBadRequest)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:             uuid.NewString(),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		Role:           role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Repo might return common.ErrConflict
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	s.log.Info("User registered", "user_id", user.ID, "role", role)
	user.HashedPassword = "" // Clear password before returning
	return &AuthResponse{User: user, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized // Generic message for security
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.ErrUnauthorized
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = ""
	return &AuthResponse{User: user, Token: token}, nil
}

// Logout revokes the token until it would have expired on its own.
func (s *AuthService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return common.ErrBadRequest
	}
	if err := s.blocklist.Block(ctx, tokenID, expiresAt.Sub(s.now())); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *AuthService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.blocklist.IsBlocked(ctx, tokenID)
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", userID, err)
	}
	user.HashedPassword = ""
	return user, nil
}

// DeleteProfile removes the user with their submissions and solved-set.
func (s *AuthService) DeleteProfile(ctx context.Context, userID string) error {
	if err := s.submissionRepo.DeleteSubmissionsByUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete submissions of user %s: %w", userID, err)
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}
	s.log.Info("User deleted", "user_id", userID)
	return nil
}

// LogoutQuietly is used after DeleteProfile, where a failed revoke must not
// undo the deletion.
func (s *AuthService) LogoutQuietly(ctx context.Context, tokenID string, expiresAt time.Time) {
	if err := s.Logout(ctx, tokenID, expiresAt); err != nil {
		s.log.Warn("Failed to revoke token of deleted user", logger.Err(err))
	}
}

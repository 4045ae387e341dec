package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/evalprd/evalprd-api/internal/dto"
	"github.com/evalprd/evalprd-api/internal/models"
	"github.com/evalprd/evalprd-api/internal/repository"
)

// ErrUserNotFound signals that no profile exists for the token subject.
var ErrUserNotFound = errors.New("user not found")

// AuthService syncs identity-provider subjects into local user profiles.
type AuthService interface {
	Register(ctx context.Context, subject string, req dto.RegisterRequest) (dto.UserResponse, error)
	Me(ctx context.Context, subject string) (dto.UserResponse, error)
}

type authService struct {
	users  repository.UserRepository
	logger zerolog.Logger
}

// NewAuthService constructs the auth service.
func NewAuthService(users repository.UserRepository, logger zerolog.Logger) AuthService {
	return &authService{
		users:  users,
		logger: logger.With().Str("component", "auth_service").Logger(),
	}
}

func (s *authService) Register(ctx context.Context, subject string, req dto.RegisterRequest) (dto.UserResponse, error) {
	user := models.User{
		ID:        subject,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}
	if err := s.users.Upsert(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}
	stored, err := s.users.GetByID(ctx, subject)
	if err != nil {
		return dto.UserResponse{}, err
	}
	s.logger.Info().Str("user_id", subject).Msg("user profile synced")
	return toUserResponse(stored), nil
}

func (s *authService) Me(ctx context.Context, subject string) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return toUserResponse(user), nil
}

func toUserResponse(user models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

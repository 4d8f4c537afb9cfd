package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go-resale-dashboard/internal/model"
	"go-resale-dashboard/internal/repository"
	"go-resale-dashboard/pkg/jwt"
)

type AuthService interface {
	Login(email, password string) (*LoginResponse, error)
	ValidateToken(tokenString string) (*jwt.Claims, error)
	ResetPassword(email, oldPassword, newPassword string) error
	SeedAdmin(email, password string) error
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *jwt.Manager
}

func NewAuthService(userRepo repository.UserRepository, tokens *jwt.Manager) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

func (s *authService) Login(email, password string) (*LoginResponse, error) {
	// 1. Find user by email
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// 2. Check if user is active
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 3. Verify password
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	// 4. Single Session: Generate New Token Version
	now := time.Now().UTC()
	user.TokenVersion = uuid.NewString()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(user); err != nil {
		return nil, errors.New("failed to update session")
	}

	// 5. Generate JWT token with TokenVersion
	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.FullName, user.TokenVersion)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	return &LoginResponse{
		Token: token,
		User:  user.ToResponse(),
	}, nil
}

// ValidateToken checks the signature and that the token belongs to the
// operator's current session.
func (s *authService) ValidateToken(tokenString string) (*jwt.Claims, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionExpired
	}
	return claims, nil
}

// ResetPassword replaces the operator's password after checking the old one.
// Existing sessions are ended.
func (s *authService) ResetPassword(email, oldPassword, newPassword string) error {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return ErrInvalidCredentials
	}
	if !user.CheckPassword(oldPassword) {
		return ErrInvalidCredentials
	}
	if len(newPassword) < 6 {
		return ErrWeakPassword
	}

	if err := user.SetPassword(newPassword); err != nil {
		return errors.New("failed to hash password")
	}
	if err := s.userRepo.UpdatePassword(user.ID, user.Password); err != nil {
		return errors.New("failed to update password")
	}
	if err := s.userRepo.UpdateTokenVersion(user.ID, uuid.NewString()); err != nil {
		return errors.New("failed to end sessions")
	}
	log.Info().Str("user_id", user.ID).Msg("operator password reset")
	return nil
}

// SeedAdmin creates the operator account when it does not exist yet.
func (s *authService) SeedAdmin(email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.userRepo.FindByEmail(email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	admin := &model.User{
		Email:    email,
		FullName: "Dashboard Operator",
		IsActive: true,
	}
	if err := admin.SetPassword(password); err != nil {
		return err
	}
	if err := s.userRepo.Create(admin); err != nil {
		return err
	}
	log.Info().Str("email", admin.Email).Msg("operator account created")
	return nil
}

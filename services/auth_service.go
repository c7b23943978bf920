package services

import (
	"fmt"
	"time"

	"alumnet/auth"
	"alumnet/domain"
	"alumnet/errors"
	"alumnet/repositories"
)

type IAuthService interface {
	Register(req auth.RegisterRequest) (Token, error)
	Login(email, password string) (Token, error)
	Authenticate(token string) (domain.User, error)
}

type Token string

type AuthService struct {
	userRepository repositories.IUserRepository
	signer         auth.TokenSigner
	tokenDuration  time.Duration
}

func NewAuthService(repo repositories.IUserRepository, signer auth.TokenSigner,
	tokenDuration time.Duration) IAuthService {
	return &AuthService{userRepository: repo, signer: signer, tokenDuration: tokenDuration}
}

func (s *AuthService) Register(req auth.RegisterRequest) (Token, error) {
	// 1. Validate business rules (email format, password complexity)
	// before any expensive cryptographic operation.
	if err := auth.ValidateRegister(req); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// 2. Hash the password using Argon2id. Done in the service layer to keep
	// the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(req.Email, req.Username,
		req.FirstName, req.LastName, hashedPassword)
	if err != nil {
		return "", err // Propagates ErrUserAlreadyExists if the email is taken
	}

	token, err := s.signer.Generate(userID, []string{"alumni"}, s.tokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.signer.Generate(user.ID, []string{user.Role}, s.tokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// Authenticate resolves an opaque bearer credential into a full user profile.
// It is idempotent within the credential's validity window and is the only
// gate a connection passes before being registered.
func (s *AuthService) Authenticate(token string) (domain.User, error) {
	claims, err := s.signer.Validate(token)
	if err != nil {
		return domain.User{}, errors.ErrUnauthenticated
	}

	user, err := s.userRepository.FindByID(claims.UserID)
	if err != nil {
		// Well-formed credential whose subject no longer exists.
		return domain.User{}, errors.ErrUserNotFound
	}
	return user, nil
}

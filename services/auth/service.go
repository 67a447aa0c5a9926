package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/jwt"
	"github.com/hapogroup/newsletter/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrMissingCredentials    = errors.New("email and password are required")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrPasswordTooShort      = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

// dummyHash keeps the comparison cost equal when the email does not match.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoO5Nk5q0Gd2yZ3kJYh4sU3f6Qm6nS8h2C")

// TokenIssuer signs admin access tokens.
type TokenIssuer interface {
	GenerateToken(subject string) (string, error)
	GetAccessExpirySeconds() int
}

type Service struct {
	config *config.AdminConfig
	tokens TokenIssuer
	logger *logging.Service
}

// Session is the result of a successful admin login.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func NewService(cfg *config.AdminConfig, tokens TokenIssuer, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		tokens: tokens,
		logger: logger,
	}
}

// Login checks the admin credentials and issues a bearer token.
func (s *Service) Login(email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	if err := s.VerifyCredentials(email, password); err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateToken(s.config.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	s.logger.Info("admin logged in", zap.String("email", email))

	return &Session{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   s.tokens.GetAccessExpirySeconds(),
	}, nil
}

func (s *Service) VerifyCredentials(email, password string) error {
	emailMatches := s.config.Email != "" &&
		subtle.ConstantTimeCompare([]byte(strings.ToLower(email)), []byte(strings.ToLower(s.config.Email))) == 1

	hash := []byte(s.config.PasswordHash)
	if !emailMatches || len(hash) == 0 {
		hash = dummyHash
	}

	passwordErr := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if !emailMatches || len(s.config.PasswordHash) == 0 || passwordErr != nil {
		s.logger.Warn("admin login rejected", zap.String("email", email))
		return ErrInvalidCredentials
	}

	return nil
}

// HashPassword produces the value for ADMIN_PASSWORD_HASH.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPasswordHashingFailed, err)
	}
	return string(hash), nil
}

var _ TokenIssuer = (*jwt.Service)(nil)

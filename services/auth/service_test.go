package auth

import (
	"errors"
	"testing"

	"github.com/hapogroup/newsletter/services/jwt"
	"github.com/hapogroup/newsletter/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type failingIssuer struct{}

func (failingIssuer) GenerateToken(string) (string, error) { return "", errors.New("signing failed") }
func (failingIssuer) GetAccessExpirySeconds() int          { return 0 }

func TestService_Login(t *testing.T) {
	cfg := testutils.GetTestConfig()
	jwtService := jwt.NewService(cfg, nil)
	service := NewService(&cfg.Admin, jwtService, nil)

	t.Run("valid credentials issue a bearer token", func(t *testing.T) {
		session, err := service.Login(testutils.AdminEmail, testutils.AdminPassword)

		require.NoError(t, err)
		assert.Equal(t, "Bearer", session.TokenType)
		assert.Equal(t, 900, session.ExpiresIn)

		claims, err := jwtService.ValidateToken(session.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, testutils.AdminEmail, claims.Subject)
	})

	t.Run("email comparison ignores case and whitespace", func(t *testing.T) {
		_, err := service.Login("  ADMIN@example.com ", testutils.AdminPassword)
		assert.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		session, err := service.Login(testutils.AdminEmail, "wrong-password")

		assert.Nil(t, session)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := service.Login("someone@example.com", testutils.AdminPassword)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("missing credentials", func(t *testing.T) {
		_, err := service.Login("", testutils.AdminPassword)
		assert.ErrorIs(t, err, ErrMissingCredentials)

		_, err = service.Login(testutils.AdminEmail, "")
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	t.Run("no password hash configured", func(t *testing.T) {
		admin := cfg.Admin
		admin.PasswordHash = ""
		unconfigured := NewService(&admin, jwtService, nil)

		_, err := unconfigured.Login(testutils.AdminEmail, testutils.AdminPassword)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("token issuing failure", func(t *testing.T) {
		broken := NewService(&cfg.Admin, failingIssuer{}, nil)

		_, err := broken.Login(testutils.AdminEmail, testutils.AdminPassword)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestHashPassword(t *testing.T) {
	t.Run("hash verifies", func(t *testing.T) {
		hash, err := HashPassword("correct horse battery", bcrypt.MinCost)

		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse battery")))
	})

	t.Run("out of range cost falls back to default", func(t *testing.T) {
		hash, err := HashPassword("correct horse battery", 1)

		require.NoError(t, err)
		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.DefaultCost, cost)
	})

	t.Run("short password rejected", func(t *testing.T) {
		_, err := HashPassword("short", bcrypt.MinCost)
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})
}

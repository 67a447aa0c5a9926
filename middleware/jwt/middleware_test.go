package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hapogroup/newsletter/services/jwt"
	"github.com/hapogroup/newsletter/testutils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestJWTService() *jwt.Service {
	return jwt.NewService(testutils.GetTestConfig(), nil)
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (echo.Context, *httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/newsletter-broadcast", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := mw(func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "success"})
	})(c)
	return c, rec, err
}

func requireUnauthorized(t *testing.T, err error, message string) {
	t.Helper()
	require.Error(t, err)
	httpError, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpError.Code)
	assert.Equal(t, message, httpError.Message)
}

func TestRequireJWT(t *testing.T) {
	jwtService := setupTestJWTService()
	middleware := RequireJWT(jwtService)

	t.Run("missing authorization header", func(t *testing.T) {
		_, _, err := runMiddleware(t, middleware, "")
		requireUnauthorized(t, err, "Authentication required")
	})

	t.Run("invalid authorization header format", func(t *testing.T) {
		_, _, err := runMiddleware(t, middleware, "Basic abc")
		requireUnauthorized(t, err, "Invalid authorization header format")
	})

	t.Run("empty bearer token", func(t *testing.T) {
		_, _, err := runMiddleware(t, middleware, "Bearer ")
		requireUnauthorized(t, err, "Authentication required")
	})

	t.Run("invalid JWT token", func(t *testing.T) {
		_, _, err := runMiddleware(t, middleware, "Bearer invalid.jwt.token")
		requireUnauthorized(t, err, "Invalid or expired token")
	})

	t.Run("valid JWT token", func(t *testing.T) {
		tokenString, err := jwtService.GenerateToken(testutils.AdminEmail)
		require.NoError(t, err)

		c, rec, err := runMiddleware(t, middleware, "Bearer "+tokenString)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, testutils.AdminEmail, GetSubject(c))
		claims := GetClaims(c)
		require.NotNil(t, claims)
		assert.NotEmpty(t, claims.JTI)
	})

	t.Run("expired JWT token", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.JWT.AccessExpiry = -time.Minute
		expiredService := jwt.NewService(cfg, nil)

		tokenString, err := expiredService.GenerateToken(testutils.AdminEmail)
		require.NoError(t, err)

		_, _, err = runMiddleware(t, RequireJWT(expiredService), "Bearer "+tokenString)
		requireUnauthorized(t, err, "Token has expired")
	})

	t.Run("bearer token with extra spaces", func(t *testing.T) {
		tokenString, err := jwtService.GenerateToken(testutils.AdminEmail)
		require.NoError(t, err)

		_, _, err = runMiddleware(t, middleware, "Bearer  "+tokenString+"  ")
		require.Error(t, err)
	})
}

func TestContextAccessors(t *testing.T) {
	e := echo.New()

	t.Run("values absent", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

		assert.Equal(t, "", GetSubject(c))
		assert.Nil(t, GetClaims(c))
	})

	t.Run("wrong types", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.Set(SubjectKey, 42)
		c.Set(ClaimsKey, "claims")

		assert.Equal(t, "", GetSubject(c))
		assert.Nil(t, GetClaims(c))
	})
}

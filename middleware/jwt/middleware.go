package jwt

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hapogroup/newsletter/services/jwt"
	"github.com/labstack/echo/v4"
)

const (
	SubjectKey = "_jwt_subject"
	ClaimsKey  = "_jwt_claims"
)

// RequireJWT rejects requests without a valid admin bearer token with 401.
func RequireJWT(jwtService *jwt.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, jwt.ErrExpiredToken):
					return echo.NewHTTPError(http.StatusUnauthorized, "Token has expired")
				default:
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
				}
			}

			c.Set(SubjectKey, claims.Subject)
			c.Set(ClaimsKey, claims)

			return next(c)
		}
	}
}

// GetSubject returns the authenticated admin email, or "" outside RequireJWT.
func GetSubject(c echo.Context) string {
	if subject, ok := c.Get(SubjectKey).(string); ok {
		return subject
	}
	return ""
}

func GetClaims(c echo.Context) *jwt.Claims {
	if claims, ok := c.Get(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}

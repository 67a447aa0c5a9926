package api

import (
	"errors"
	"net/http"

	"github.com/hapogroup/newsletter/server"
	"github.com/hapogroup/newsletter/services/auth"
	"github.com/hapogroup/newsletter/services/blog"
	"github.com/hapogroup/newsletter/services/contact"
	"github.com/hapogroup/newsletter/services/newsletter"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// errorResponse maps service errors to HTTP errors. Unknown errors are
// logged here and leave the handler as a generic 500.
func (h *Handlers) errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, newsletter.ErrInvalidInput),
		errors.Is(err, contact.ErrInvalidInput),
		errors.Is(err, blog.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, userMessage(err))
	case errors.Is(err, newsletter.ErrNotFound), errors.Is(err, blog.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, userMessage(err))
	case errors.Is(err, auth.ErrMissingCredentials):
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	h.logger.Error("request failed",
		zap.Error(err),
		zap.String("method", c.Request().Method),
		zap.String("path", c.Request().URL.Path))
	return echo.NewHTTPError(http.StatusInternalServerError, server.MessageInternalError)
}

func userMessage(err error) string {
	var e *newsletter.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, message)
}

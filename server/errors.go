package server

import (
	"errors"
	"net/http"

	"github.com/hapogroup/newsletter/services/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const MessageInternalError = "Internal server error"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error" example:"Invalid email format"`
}

// HTTPErrorHandler renders errors as {"error": "..."}. Anything that is not
// an *echo.HTTPError is logged and reported as a generic 500.
func HTTPErrorHandler(logger *logging.Service) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := MessageInternalError

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = httpErrorMessage(he)
			if he.Internal != nil && code >= http.StatusInternalServerError {
				logger.Error("request failed", zap.Error(he.Internal),
					zap.String("method", c.Request().Method),
					zap.String("path", c.Request().URL.Path))
			}
		} else {
			logger.Error("unhandled request error", zap.Error(err),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, ErrorResponse{Error: message})
		}
		if err != nil {
			logger.Warn("failed to write error response", zap.Error(err))
		}
	}
}

func httpErrorMessage(he *echo.HTTPError) string {
	switch he.Code {
	case http.StatusMethodNotAllowed:
		return "Method not allowed"
	case http.StatusNotFound:
		if he == echo.ErrNotFound {
			return "Not found"
		}
	}
	if he.Code >= http.StatusInternalServerError {
		return MessageInternalError
	}
	if msg, ok := he.Message.(string); ok && msg != "" {
		return msg
	}
	return http.StatusText(he.Code)
}

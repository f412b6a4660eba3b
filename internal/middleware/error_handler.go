package middleware

import (
	"log/slog"
	"time"

	"relaychat/server/internal/errors"
	"relaychat/server/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is a centralized error handler middleware
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID := c.Get(HeaderRequestID)
		if requestID == "" {
			if v, ok := c.Locals(LocalsRequestID).(string); ok {
				requestID = v
			}
		}

		slog.Error("Request failed",
			"error", err,
			"method", c.Method(),
			"path", c.Path(),
			"request_id", requestID,
		)

		if appErr, ok := errors.IsAppError(err); ok {
			return c.Status(appErr.StatusCode()).JSON(models.ErrorResponse{
				Error:     string(appErr.Code),
				Message:   appErr.Message,
				Code:      appErr.StatusCode(),
				Timestamp: appErr.Timestamp,
				RequestID: requestID,
			})
		}

		if fiberErr, ok := err.(*fiber.Error); ok {
			code := errors.ErrStoreFailure
			switch fiberErr.Code {
			case fiber.StatusBadRequest:
				code = errors.ErrBadRequest
			case fiber.StatusUnauthorized:
				code = errors.ErrAuthFailure
			case fiber.StatusNotFound:
				code = errors.ErrNotFound
			}

			return c.Status(fiberErr.Code).JSON(models.ErrorResponse{
				Error:     string(code),
				Message:   fiberErr.Message,
				Code:      fiberErr.Code,
				Timestamp: time.Now(),
				RequestID: requestID,
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:     string(errors.ErrStoreFailure),
			Message:   "An unexpected error occurred",
			Code:      fiber.StatusInternalServerError,
			Timestamp: time.Now(),
			RequestID: requestID,
		})
	}
}

package web

import (
	"errors"

	"pantry-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler renders every failure as
// {"success": false, "message": ..., "reason": ..., "fields": [...]}.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"success": false,
				"message": fe.Message,
			})
		}

		e, ok := apperr.As(err)
		if !ok {
			e = apperr.Internal("unexpected server error", err)
		}

		switch e.Kind {
		case apperr.KindInternal:
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		case apperr.KindUnavailable:
			log.Error("store unavailable",
				zap.String("path", c.Path()),
				zap.String("reason", e.Reason),
			)
		}

		body := fiber.Map{
			"success": false,
			"message": e.Message,
			"reason":  e.Reason,
		}
		if len(e.Fields) > 0 {
			body["fields"] = e.Fields
		}
		return c.Status(e.Kind.Status()).JSON(body)
	}
}

// StatusOf returns the status a handler error will be rendered with, or the
// response status when err is nil.
func StatusOf(c *fiber.Ctx, err error) int {
	var fe *fiber.Error
	switch {
	case err == nil:
		return c.Response().StatusCode()
	case errors.As(err, &fe):
		return fe.Code
	}
	if e, ok := apperr.As(err); ok {
		return e.Kind.Status()
	}
	return fiber.StatusInternalServerError
}

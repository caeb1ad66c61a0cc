package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ErrNotFound is returned by services when the requested resource does not
// exist (for example no open timeline for the practitioner).
var ErrNotFound = errors.New("resource not found")

// ErrorHandlerMiddleware turns errors returned from handlers into the
// standard response envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var verr *ValidationError
		if errors.As(err, &verr) {
			return ctx.Status(fiber.StatusBadRequest).JSON(ValidationErrorResponse(verr.Fields))
		}

		if errors.Is(err, ErrNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(fiber.StatusNotFound, err.Error()))
		}

		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			return ctx.Status(ferr.Code).JSON(ErrorResponse(ferr.Code, ferr.Message))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, err.Error()))
	}
}

package middleware

import (
	"quiz-forge/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validation.NewValidator(),
	}
}

// ValidateQuizID rejects malformed :id path parameters before they reach a handler
func (vm *ValidationMiddleware) ValidateQuizID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if errors := vm.validator.ValidateQuizID(c.Params("id")); len(errors) > 0 {
			return errors // This will be handled by ErrorHandler middleware
		}
		return c.Next()
	}
}

// ValidateShareToken rejects malformed :token path parameters
func (vm *ValidationMiddleware) ValidateShareToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if errors := vm.validator.ValidateShareToken(c.Params("token")); len(errors) > 0 {
			return errors
		}
		return c.Next()
	}
}

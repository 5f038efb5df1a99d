package handlers

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/postpilothq/postpilot/pkg/apperr"
)

var validate = validator.New()

func GetUserID(c *fiber.Ctx) (int64, error) {
	claim, _ := c.Locals("user_id").(string)
	userID, err := strconv.ParseInt(claim, 10, 64)
	if err != nil {
		return 0, apperr.Authentication("invalid session")
	}
	return userID, nil
}

// fail renders any service error with its fixed status class.
func fail(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		message = "something went wrong"
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// parseBody decodes and validates a JSON request body.
func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := validate.Struct(dest); err != nil {
		return apperr.Validation("invalid request: %v", err)
	}
	return nil
}

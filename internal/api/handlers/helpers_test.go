package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserID(t *testing.T) {
	tests := []struct {
		name       string
		claim      any
		wantStatus int
	}{
		{"numeric claim", "7", fiber.StatusOK},
		{"non-numeric claim", "not-a-number", fiber.StatusUnauthorized},
		{"empty claim", "", fiber.StatusUnauthorized},
		{"missing claim", nil, fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/whoami", func(c *fiber.Ctx) error {
				if tt.claim != nil {
					c.Locals("user_id", tt.claim)
				}
				userID, err := GetUserID(c)
				if err != nil {
					return fail(c, err)
				}
				return c.JSON(fiber.Map{"user_id": userID})
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

package auth

import (
	"strings"

	"pantry-backend/internal/web"

	"github.com/gofiber/fiber/v2"
)

type TokenRequest struct {
	APIKey string `json:"api_key"`
}

// POST /api/auth/token
func (a *Authenticator) TokenHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body TokenRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}

		key := strings.TrimSpace(body.APIKey)
		if key == "" {
			key = c.Get(HeaderAPIKey)
		}
		if !a.CheckKey(key) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid API key")
		}

		token, expires, err := GenerateToken(a.signingKey, a.tokenTTL, a.now())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not issue token")
		}

		return web.Success(c, fiber.StatusOK, "token issued", fiber.Map{
			"token":      token,
			"token_type": "Bearer",
			"expires_at": expires.UTC(),
		})
	}
}

package auth

import (
	"crypto/subtle"
	"strings"
	"time"

	"pantry-backend/internal/config"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const (
	HeaderAPIKey  = "X-API-Key"
	CtxAuthMethod = "auth_method"

	defaultTokenTTL = time.Hour
)

// Authenticator checks the shared secret. Requests carry either the key itself
// in X-API-Key or a short-lived bearer token signed with it.
type Authenticator struct {
	key        string
	hash       []byte
	signingKey []byte
	tokenTTL   time.Duration
	now        func() time.Time
}

func New(cfg *config.Config) *Authenticator {
	a := &Authenticator{
		key:      cfg.APIKey,
		tokenTTL: defaultTokenTTL,
		now:      time.Now,
	}
	if cfg.APIKeyHash != "" {
		a.hash = []byte(cfg.APIKeyHash)
	}
	if cfg.APIKey != "" {
		a.signingKey = []byte(cfg.APIKey)
	} else {
		a.signingKey = []byte(cfg.APIKeyHash)
	}
	return a
}

// CheckKey compares candidate against the configured key, or its bcrypt hash
// when only the hash is configured.
func (a *Authenticator) CheckKey(candidate string) bool {
	if candidate == "" {
		return false
	}
	if a.key != "" {
		return subtle.ConstantTimeCompare([]byte(candidate), []byte(a.key)) == 1
	}
	if len(a.hash) > 0 {
		return bcrypt.CompareHashAndPassword(a.hash, []byte(candidate)) == nil
	}
	return false
}

func (a *Authenticator) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key := c.Get(HeaderAPIKey); key != "" {
			if !a.CheckKey(key) {
				return fiber.NewError(fiber.StatusUnauthorized, "invalid API key")
			}
			c.Locals(CtxAuthMethod, "api_key")
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing credentials")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "authorization header must be 'Bearer <token>'")
		}

		if _, err := ParseToken(a.signingKey, strings.TrimSpace(parts[1])); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(CtxAuthMethod, "bearer")
		return c.Next()
	}
}

package middleware

import (
	"errors"
	"strconv"

	"crewdispatch/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	// ChatIDHeader carries the caller's chat identity, set by the chat
	// gateway in front of this service.
	ChatIDHeader = "X-Chat-ID"

	UserLocalKey   = "user"
	ChatIDLocalKey = "chatID"
)

// ResolveIdentity parses the chat ID header and, when a registered user
// exists for it, loads them into locals. Routes that allow unregistered
// callers (registration itself) only need the chat ID.
func (m *Middleware) ResolveIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(ChatIDHeader)
		if raw == "" {
			return c.Next()
		}

		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid chat id header",
			})
		}
		c.Locals(ChatIDLocalKey, chatID)

		user, err := m.userRepo.GetByChatID(c.UserContext(), chatID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return c.Next()
			}
			m.log.Function("ResolveIdentity").
				Warn("failed to resolve user", "chatID", chatID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to resolve identity",
			})
		}

		c.Locals(UserLocalKey, user)
		return c.Next()
	}
}

// RequireUser rejects requests without a registered, active user.
func (m *Middleware) RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetUser(c) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "registration required",
			})
		}
		return c.Next()
	}
}

// RequireRole rejects callers outside the given roles; admins always pass.
func (m *Middleware) RequireRole(roles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "registration required",
			})
		}
		if user.Role == models.RoleAdmin {
			return c.Next()
		}
		for _, role := range roles {
			if user.Role == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient role",
		})
	}
}

func GetUser(c *fiber.Ctx) *models.User {
	if user, ok := c.Locals(UserLocalKey).(*models.User); ok {
		return user
	}
	return nil
}

// GetChatID returns the parsed chat ID header; ok is false when the header
// was absent.
func GetChatID(c *fiber.Ctx) (int64, bool) {
	if chatID, ok := c.Locals(ChatIDLocalKey).(int64); ok {
		return chatID, true
	}
	return 0, false
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/hackathon-judge/internal/utils"
)

// Roles understood by the API.
const (
	RoleAdmin = "admin"
	RoleJudge = "judge"
)

// RequireRole ensures that the authenticated caller possesses one of the
// allowed roles. Admins pass every check.
func RequireRole(roles ...string) fiber.Handler {
	allowed := map[string]struct{}{RoleAdmin: {}}
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if Subject(c) == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		role, _ := c.Locals(LocalRole).(string)
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

package middleware

import (
	"strings"

	"cohort/config"
	"cohort/internal/logger"
	"cohort/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Roles accepted on privileged routes.
const (
	RoleResearcher = "researcher"
	RoleAuditor    = "auditor"
	RoleAuditAdmin = "audit_admin"
)

type Middleware struct {
	config config.Config
	log    logger.Logger
}

func New(config config.Config) Middleware {
	return Middleware{
		config: config,
		log:    logger.New("middleware"),
	}
}

// RequirePrivileged guards reporting and audit routes with a signed
// bearer token carrying a role claim.
func (m Middleware) RequirePrivileged(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		log := m.log.Function("RequirePrivileged")

		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{"message": "missing bearer token"})
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "),
			func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(m.config.AuthSecret), nil
			})
		if err != nil || !token.Valid {
			log.Warn("rejected privileged request", "error", err)
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{"message": "invalid token"})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{"message": "invalid token claims"})
		}

		role, _ := claims["role"].(string)
		allowed := false
		for _, r := range roles {
			if role == r {
				allowed = true
				break
			}
		}
		if !allowed {
			return c.Status(fiber.StatusForbidden).
				JSON(fiber.Map{"message": "insufficient role"})
		}

		caller, _ := claims["sub"].(string)
		c.Locals("role", role)
		c.Locals("caller", caller)
		return c.Next()
	}
}

// Meta extracts the request attributes that get hashed into audit
// fields.
func Meta(c *fiber.Ctx) models.RequestMeta {
	return models.RequestMeta{
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
	}
}

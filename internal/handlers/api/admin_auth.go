package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/donorshield/internal/middlewares/sessions"
	"github.com/khanghh/donorshield/params"
)

const adminClaimsKey = "adminClaims"

func bearerToken(ctx *fiber.Ctx) string {
	auth := ctx.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func isAdmin(ctx *fiber.Ctx, mfaService MFAService, monitor SecurityMonitor) bool {
	token := bearerToken(ctx)
	if token == "" {
		monitor.LogInvalidToken(ctx.UserContext(), ctx.IP(), ctx.Path(), "missing bearer token")
		return false
	}
	claims, err := mfaService.ValidateToken(token)
	if err != nil {
		monitor.LogInvalidToken(ctx.UserContext(), ctx.IP(), ctx.Path(), err.Error())
		return false
	}
	if !sessions.Get(ctx).IsMFAVerified(params.AdminTokenExpiration) {
		monitor.LogInvalidToken(ctx.UserContext(), ctx.IP(), ctx.Path(), "session not verified")
		return false
	}
	ctx.Locals(adminClaimsKey, claims)
	return true
}

// RequireAdmin lets through requests carrying an admin token issued after a
// TOTP verification, sent from the session that did the verification.
func RequireAdmin(mfaService MFAService, monitor SecurityMonitor) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if !isAdmin(ctx, mfaService, monitor) {
			return fiber.ErrUnauthorized
		}
		return ctx.Next()
	}
}

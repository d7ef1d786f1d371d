// Package csrf implements double submit tokens held in the session.
package csrf

import (
	"context"
	"path"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/donorshield/internal/common"
	"github.com/khanghh/donorshield/internal/middlewares/sessions"
	"github.com/khanghh/donorshield/params"
)

const (
	HeaderName = "X-CSRF-Token"
	FormField  = "_csrf"
)

// GenerateToken returns a fresh hex encoded random token.
func GenerateToken() (string, error) {
	return common.RandomHex(params.CSRFTokenSize)
}

// ValidateToken compares the token held in the session with the one sent
// by the client in constant time. Missing tokens never validate.
func ValidateToken(sessionToken, requestToken string) bool {
	if sessionToken == "" || requestToken == "" {
		return false
	}
	return common.ConstantTimeCompare(sessionToken, requestToken)
}

func isExpired(data *sessions.SessionData) bool {
	return data.CSRFToken == "" || time.Now().After(data.CSRFExpiresAt)
}

// Get returns the token of the session, issuing a new one when missing or
// expired.
func Get(session *sessions.Session) (string, error) {
	if !isExpired(&session.SessionData) {
		return session.CSRFToken, nil
	}
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	session.CSRFToken = token
	session.CSRFExpiresAt = time.Now().Add(params.CSRFTokenExpiration)
	session.Save()
	return token, nil
}

func requestToken(ctx *fiber.Ctx) string {
	if token := ctx.Get(HeaderName); token != "" {
		return token
	}
	return ctx.FormValue(FormField)
}

// Verify reports whether the request carries the token of its session.
func Verify(ctx *fiber.Ctx) bool {
	data := &sessions.Get(ctx).SessionData
	if isExpired(data) {
		return false
	}
	return ValidateToken(data.CSRFToken, requestToken(ctx))
}

type FailureLogger interface {
	LogInvalidCSRFToken(ctx context.Context, identifier, endpoint string)
}

type Config struct {
	ExcludePaths []string
	Logger       FailureLogger
}

func isSafeMethod(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions, fiber.MethodTrace:
		return true
	}
	return false
}

// New rejects state changing requests without a valid token with 403
// before the next handler runs.
func New(config Config) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		for _, p := range config.ExcludePaths {
			if ok, _ := path.Match(p, ctx.Path()); ok {
				return ctx.Next()
			}
		}
		if isSafeMethod(ctx.Method()) || Verify(ctx) {
			return ctx.Next()
		}
		if config.Logger != nil {
			config.Logger.LogInvalidCSRFToken(ctx.UserContext(), ctx.IP(), ctx.Path())
		}
		return fiber.ErrForbidden
	}
}

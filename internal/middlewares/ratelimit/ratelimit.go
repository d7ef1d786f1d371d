// Package ratelimit wraps the fiber limiter so that every rejected request
// is recorded as a rate limit security event.
package ratelimit

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type EventLogger interface {
	LogRateLimitExceeded(ctx context.Context, identifier, endpoint string)
}

type Config struct {
	Max     int
	Window  time.Duration
	Storage fiber.Storage
	Logger  EventLogger
}

func New(config Config) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.Max,
		Expiration: config.Window,
		Storage:    config.Storage,
		KeyGenerator: func(ctx *fiber.Ctx) string {
			return "ratelimit:" + ctx.IP()
		},
		LimitReached: func(ctx *fiber.Ctx) error {
			if config.Logger != nil {
				config.Logger.LogRateLimitExceeded(ctx.UserContext(), ctx.IP(), ctx.Path())
			}
			return fiber.ErrTooManyRequests
		},
	})
}

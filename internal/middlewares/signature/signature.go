// Package signature authenticates service to service requests carrying a
// signed envelope body.
package signature

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/donorshield/internal/signing"
)

const signedDataKey = "signedData"

type FailureLogger interface {
	LogInvalidSignature(ctx context.Context, identifier, endpoint, reason string)
}

type Config struct {
	Secret string
	// MaxTTL bounds the lifetime an envelope may claim. Zero disables the
	// check.
	MaxTTL time.Duration
	Logger FailureLogger
	Now    func() time.Time
}

// Data returns the payload of the verified envelope.
func Data(ctx *fiber.Ctx) json.RawMessage {
	data, _ := ctx.Locals(signedDataKey).(json.RawMessage)
	return data
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, signing.ErrRequestExpired):
		return "expired signed request"
	case errors.Is(err, signing.ErrMalformedRequest):
		return "malformed signed request"
	case errors.Is(err, signing.ErrLifetimeTooLong):
		return "signed request lifetime too long"
	default:
		return "signature mismatch"
	}
}

// New rejects requests whose body is not a valid, unexpired signed envelope
// with 401, as well as envelopes claiming a lifetime above MaxTTL. The reason
// is only logged.
func New(config Config) fiber.Handler {
	if config.Now == nil {
		config.Now = time.Now
	}
	return func(ctx *fiber.Ctx) error {
		var req signing.SignedRequest
		err := json.Unmarshal(ctx.Body(), &req)
		if err != nil {
			err = signing.ErrMalformedRequest
		} else {
			err = signing.VerifySignedRequest(&req, config.Secret, config.Now())
		}
		if err == nil && config.MaxTTL > 0 && req.Lifetime() > config.MaxTTL {
			err = signing.ErrLifetimeTooLong
		}
		if err != nil {
			if config.Logger != nil {
				config.Logger.LogInvalidSignature(ctx.UserContext(), ctx.IP(), ctx.Path(), failureReason(err))
			}
			return fiber.ErrUnauthorized
		}
		ctx.Locals(signedDataKey, req.Data)
		return ctx.Next()
	}
}

package api

import (
	"context"
	"time"

	"github.com/khanghh/donorshield/internal/mfa"
	"github.com/khanghh/donorshield/internal/security"
)

type MFAService interface {
	Setup(ctx context.Context) (*mfa.Enrollment, error)
	Enable(ctx context.Context, secret, code string) error
	Verify(ctx context.Context, identifier, code string) (string, error)
	IsEnabled(ctx context.Context) (bool, error)
	ValidateToken(tokenStr string) (*mfa.AdminClaims, error)
}

type SecurityMonitor interface {
	LogEvent(ctx context.Context, ev security.Event)
	LogInvalidToken(ctx context.Context, identifier, endpoint, reason string)
	LogInvalidCSRFToken(ctx context.Context, identifier, endpoint string)
	LogInvalidSignature(ctx context.Context, identifier, endpoint, reason string)
	LogRateLimitExceeded(ctx context.Context, identifier, endpoint string)
	GetEvents(ctx context.Context, identifier string, eventType security.EventType, window time.Duration) ([]security.Event, error)
	GetAlerts(ctx context.Context, identifier string, window time.Duration) ([]security.Alert, error)
}

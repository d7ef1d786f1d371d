package security

import (
	"context"
	"unicode/utf8"
)

const maxLoggedInput = 256

// truncateInput keeps at most maxLoggedInput bytes of input without
// splitting a rune.
func truncateInput(input string) string {
	if len(input) <= maxLoggedInput {
		return input
	}
	cut := maxLoggedInput
	for cut > 0 && !utf8.RuneStart(input[cut]) {
		cut--
	}
	return input[:cut] + "..."
}

func (m *Monitor) LogRateLimitExceeded(ctx context.Context, identifier, endpoint string) {
	m.LogEvent(ctx, Event{
		Type:       EventRateLimitExceeded,
		Identifier: identifier,
		Endpoint:   endpoint,
		Details:    "rate limit exceeded",
	})
}

func (m *Monitor) LogInvalidToken(ctx context.Context, identifier, endpoint, reason string) {
	m.LogEvent(ctx, Event{
		Type:       EventInvalidToken,
		Identifier: identifier,
		Endpoint:   endpoint,
		Details:    reason,
	})
}

func (m *Monitor) LogInvalidCSRFToken(ctx context.Context, identifier, endpoint string) {
	m.LogEvent(ctx, Event{
		Type:       EventInvalidCSRFToken,
		Identifier: identifier,
		Endpoint:   endpoint,
		Details:    "CSRF token missing or mismatched",
	})
}

func (m *Monitor) LogInvalidSignature(ctx context.Context, identifier, endpoint, reason string) {
	m.LogEvent(ctx, Event{
		Type:       EventInvalidRequestSignature,
		Identifier: identifier,
		Endpoint:   endpoint,
		Details:    reason,
	})
}

func (m *Monitor) LogAuthenticationFailure(ctx context.Context, identifier, reason string) {
	m.LogEvent(ctx, Event{
		Type:       EventAuthenticationFailure,
		Identifier: identifier,
		Details:    reason,
	})
}

func (m *Monitor) LogXSSAttempt(ctx context.Context, identifier, endpoint, input string) {
	m.LogEvent(ctx, Event{
		Type:       EventXSSAttempt,
		Identifier: identifier,
		Endpoint:   endpoint,
		Details:    "possible XSS payload",
		Metadata:   map[string]any{"input": truncateInput(input)},
	})
}

func (m *Monitor) LogSQLInjectionAttempt(ctx context.Context, identifier, endpoint, input string) {
	m.LogEvent(ctx, Event{
		Type:       EventSQLInjectionAttempt,
		Identifier: identifier,
		Endpoint:   endpoint,
		Details:    "possible SQL injection payload",
		Metadata:   map[string]any{"input": truncateInput(input)},
	})
}

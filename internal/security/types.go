package security

import (
	"fmt"
	"log/slog"
	"strings"
)

type EventType string

const (
	EventRateLimitExceeded       EventType = "rate_limit_exceeded"
	EventInvalidToken            EventType = "invalid_token"
	EventInvalidCSRFToken        EventType = "invalid_csrf_token"
	EventInvalidRequestSignature EventType = "invalid_request_signature"
	EventSuspiciousActivity      EventType = "suspicious_activity"
	EventAuthenticationFailure   EventType = "authentication_failure"
	EventAuthorizationFailure    EventType = "authorization_failure"
	EventInputValidationFailure  EventType = "input_validation_failure"
	EventXSSAttempt              EventType = "xss_attempt"
	EventSQLInjectionAttempt     EventType = "sql_injection_attempt"
	EventPathTraversalAttempt    EventType = "path_traversal_attempt"
	EventCommandInjectionAttempt EventType = "command_injection_attempt"
)

var AllEventTypes = []EventType{
	EventRateLimitExceeded,
	EventInvalidToken,
	EventInvalidCSRFToken,
	EventInvalidRequestSignature,
	EventSuspiciousActivity,
	EventAuthenticationFailure,
	EventAuthorizationFailure,
	EventInputValidationFailure,
	EventXSSAttempt,
	EventSQLInjectionAttempt,
	EventPathTraversalAttempt,
	EventCommandInjectionAttempt,
}

// DefaultSeverity is the severity an event of this type gets when the
// caller does not set one.
func (t EventType) DefaultSeverity() Severity {
	switch t {
	case EventInputValidationFailure:
		return SeverityLow
	case EventRateLimitExceeded, EventInvalidToken, EventSuspiciousActivity,
		EventAuthenticationFailure, EventAuthorizationFailure:
		return SeverityMedium
	case EventInvalidCSRFToken, EventInvalidRequestSignature, EventXSSAttempt,
		EventPathTraversalAttempt:
		return SeverityHigh
	case EventSQLInjectionAttempt, EventCommandInjectionAttempt:
		return SeverityCritical
	}
	return 0
}

func (t EventType) Valid() bool {
	return t.DefaultSeverity() != 0
}

func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
	return t, nil
}

// Severity is ordered: a higher value is more severe.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// LogLevel maps a severity to the level of its diagnostic record.
func (s Severity) LogLevel() slog.Level {
	switch s {
	case SeverityLow:
		return slog.LevelDebug
	case SeverityMedium:
		return slog.LevelInfo
	case SeverityHigh:
		return slog.LevelWarn
	case SeverityCritical:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

func ParseSeverity(str string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSeverity, str)
}

func (s Severity) MarshalText() ([]byte, error) {
	if s == 0 {
		return []byte{}, nil
	}
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSeverity, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = 0
		return nil
	}
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

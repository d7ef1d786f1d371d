package security

import (
	"fmt"
	"time"

	"github.com/khanghh/donorshield/params"
)

// Event is one observed security-relevant occurrence. Identifier is the
// partition key of every windowed query; the other context fields are
// informational only.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Severity   Severity       `json:"severity"`
	Timestamp  int64          `json:"timestamp"`
	Identifier string         `json:"identifier"`
	Endpoint   string         `json:"endpoint,omitempty"`
	Details    string         `json:"details,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (e *Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Alert is emitted when the events of one type for one identifier reach the
// configured threshold within its window. Severity comes from the threshold.
type Alert struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Severity   Severity  `json:"severity"`
	Identifier string    `json:"identifier"`
	Count      int       `json:"count"`
	WindowMs   int64     `json:"windowMs"`
	Threshold  int       `json:"threshold"`
	Timestamp  int64     `json:"timestamp"`
}

func (a *Alert) Time() time.Time {
	return time.UnixMilli(a.Timestamp)
}

// AnomalyResult is produced per event by an anomaly detector. It is never
// persisted by the monitor.
type AnomalyResult struct {
	Detected       bool     `json:"detected"`
	Type           string   `json:"type"`
	Severity       Severity `json:"severity"`
	Score          float64  `json:"score"`
	Details        string   `json:"details"`
	Recommendation string   `json:"recommendation,omitempty"`
}

type Threshold struct {
	Count    int
	Window   time.Duration
	Severity Severity
}

func (t Threshold) Validate() error {
	if t.Count <= 0 || t.Window <= 0 || !t.Severity.Valid() {
		return fmt.Errorf("%w: count=%d window=%s severity=%s", ErrInvalidThreshold, t.Count, t.Window, t.Severity)
	}
	return nil
}

// Thresholds holds at most one threshold per event type. A type without an
// entry never alerts.
type Thresholds map[EventType]Threshold

func NewThreshold(count int, window time.Duration, severity string) (Threshold, error) {
	sev, err := ParseSeverity(severity)
	if err != nil {
		return Threshold{}, err
	}
	t := Threshold{Count: count, Window: window, Severity: sev}
	return t, t.Validate()
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		EventRateLimitExceeded:       {Count: 10, Window: time.Minute, Severity: SeverityMedium},
		EventInvalidToken:            {Count: 10, Window: 5 * time.Minute, Severity: SeverityMedium},
		EventInvalidCSRFToken:        {Count: 5, Window: 5 * time.Minute, Severity: SeverityHigh},
		EventInvalidRequestSignature: {Count: 5, Window: 5 * time.Minute, Severity: SeverityHigh},
		EventAuthenticationFailure:   {Count: 10, Window: 15 * time.Minute, Severity: SeverityHigh},
		EventXSSAttempt:              {Count: 3, Window: time.Hour, Severity: SeverityCritical},
		EventSQLInjectionAttempt:     {Count: 3, Window: time.Hour, Severity: SeverityCritical},
	}
}

func eventKey(identifier string, eventType EventType) string {
	return identifier + ":" + string(eventType)
}

func defaultWindow(window time.Duration) time.Duration {
	if window <= 0 {
		return params.DefaultEventQueryWindow
	}
	return window
}

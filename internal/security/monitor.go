// Package security records security events per (identifier, event type),
// raises alerts when an event type crosses its threshold inside a sliding
// window, and hands every event to the anomaly hook.
package security

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/khanghh/donorshield/internal/store"
	"github.com/khanghh/donorshield/params"
)

const defaultHookTimeout = 10 * time.Second

// AnomalyHook is invoked after an event has been logged. It runs outside of
// the logging call and its errors are only reported.
type AnomalyHook interface {
	DetectAnomalies(ctx context.Context, ev Event) ([]AnomalyResult, error)
}

// AlertNotifier receives every persisted alert, asynchronously.
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, alert Alert) error
}

type Monitor struct {
	events      store.Series[Event]
	alerts      store.Series[Alert]
	logger      *slog.Logger
	now         func() time.Time
	hook        AnomalyHook
	notifiers   []AlertNotifier
	idNode      *snowflake.Node
	hookTimeout time.Duration
	wg          sync.WaitGroup

	mu         sync.RWMutex
	thresholds Thresholds
}

type Option func(*Monitor)

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func WithThresholds(thresholds Thresholds) Option {
	return func(m *Monitor) {
		m.thresholds = thresholds
	}
}

func WithAnomalyHook(hook AnomalyHook) Option {
	return func(m *Monitor) {
		m.hook = hook
	}
}

func WithNotifiers(notifiers ...AlertNotifier) Option {
	return func(m *Monitor) {
		m.notifiers = append(m.notifiers, notifiers...)
	}
}

func WithHookTimeout(timeout time.Duration) Option {
	return func(m *Monitor) {
		m.hookTimeout = timeout
	}
}

func WithNodeID(node *snowflake.Node) Option {
	return func(m *Monitor) {
		m.idNode = node
	}
}

// SetThresholds replaces the threshold table of a running monitor.
func (m *Monitor) SetThresholds(thresholds Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = thresholds
}

func (m *Monitor) Threshold(eventType EventType) (Threshold, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.thresholds[eventType]
	return t, ok
}

func (m *Monitor) logDiagnostic(ctx context.Context, ev *Event) {
	m.logger.Log(ctx, ev.Severity.LogLevel(), "Security event",
		"id", ev.ID,
		"type", ev.Type,
		"severity", ev.Severity,
		"identifier", ev.Identifier,
		"endpoint", ev.Endpoint,
		"details", ev.Details,
	)
}

// LogEvent stamps, persists and evaluates ev. It never fails: when the store
// is unreachable the event is dropped and only the diagnostic record remains.
func (m *Monitor) LogEvent(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Security event logging panicked", "type", ev.Type, "panic", r)
		}
	}()

	if !ev.Type.Valid() {
		m.logger.Warn("Dropping security event of unknown type", "type", ev.Type, "identifier", ev.Identifier)
		return
	}
	now := m.now()
	ev.Timestamp = now.UnixMilli()
	if ev.ID == "" {
		ev.ID = m.idNode.Generate().String()
	}
	if !ev.Severity.Valid() {
		ev.Severity = ev.Type.DefaultSeverity()
	}
	if ev.Identifier == "" {
		ev.Identifier = "unknown"
	}

	m.logDiagnostic(ctx, &ev)
	eventsTotal.WithLabelValues(string(ev.Type), ev.Severity.String()).Inc()

	key := eventKey(ev.Identifier, ev.Type)
	if err := m.events.Append(ctx, key, now, ev, params.EventRetention); err != nil {
		eventsDroppedTotal.WithLabelValues(string(ev.Type)).Inc()
		m.logger.Warn("Security event dropped", "type", ev.Type, "identifier", ev.Identifier, "error", err)
		return
	}
	if _, err := m.CheckAlertThresholds(ctx, ev); err != nil {
		m.logger.Warn("Could not evaluate alert threshold", "type", ev.Type, "identifier", ev.Identifier, "error", err)
	}
	m.runAnomalyHook(ev)
}

// CheckAlertThresholds counts the events of ev's type and identifier inside
// the trailing window of the configured threshold and persists an alert
// when the count reaches it. It returns nil when no alert was raised.
func (m *Monitor) CheckAlertThresholds(ctx context.Context, ev Event) (*Alert, error) {
	threshold, ok := m.Threshold(ev.Type)
	if !ok {
		return nil, nil
	}
	now := m.now()
	count, err := m.events.Count(ctx, eventKey(ev.Identifier, ev.Type), now.Add(-threshold.Window), now)
	if err != nil {
		return nil, err
	}
	if count < int64(threshold.Count) {
		return nil, nil
	}

	alert := Alert{
		ID:         uuid.NewString(),
		Type:       ev.Type,
		Severity:   threshold.Severity,
		Identifier: ev.Identifier,
		Count:      int(count),
		WindowMs:   threshold.Window.Milliseconds(),
		Threshold:  threshold.Count,
		Timestamp:  now.UnixMilli(),
	}
	if err := m.alerts.Append(ctx, ev.Identifier, now, alert, params.AlertRetention); err != nil {
		return nil, fmt.Errorf("persist alert: %w", err)
	}
	alertsTotal.WithLabelValues(string(alert.Type), alert.Severity.String()).Inc()
	m.logger.Log(ctx, alert.Severity.LogLevel(), "Security alert triggered",
		"id", alert.ID,
		"type", alert.Type,
		"severity", alert.Severity,
		"identifier", alert.Identifier,
		"count", alert.Count,
		"threshold", alert.Threshold,
		"windowMs", alert.WindowMs,
	)
	m.dispatchAlert(alert)
	return &alert, nil
}

// goIsolated runs fn on its own goroutine. Panics and errors stop there.
func (m *Monitor) goIsolated(name string, fn func(ctx context.Context) error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				hookFailuresTotal.WithLabelValues(name).Inc()
				m.logger.Error("Security hook panicked", "hook", name, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), m.hookTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			hookFailuresTotal.WithLabelValues(name).Inc()
			m.logger.Warn("Security hook failed", "hook", name, "error", err)
		}
	}()
}

func (m *Monitor) runAnomalyHook(ev Event) {
	if m.hook == nil {
		return
	}
	m.goIsolated("anomaly", func(ctx context.Context) error {
		results, err := m.hook.DetectAnomalies(ctx, ev)
		for _, result := range results {
			if !result.Detected {
				continue
			}
			m.logger.Warn("Anomaly detected",
				"event", ev.ID,
				"identifier", ev.Identifier,
				"anomaly", result.Type,
				"severity", result.Severity,
				"score", result.Score,
				"details", result.Details,
			)
		}
		return err
	})
}

func (m *Monitor) dispatchAlert(alert Alert) {
	for _, notifier := range m.notifiers {
		m.goIsolated("notifier", func(ctx context.Context) error {
			return notifier.NotifyAlert(ctx, alert)
		})
	}
}

// Wait blocks until every in-flight hook and notifier has returned.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

func sortNewestFirst[T any](items []T, timestamp func(*T) int64) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(timestamp(&b), timestamp(&a))
	})
}

// eventTypesOf scans the event partitions of identifier.
func (m *Monitor) eventTypesOf(ctx context.Context, identifier string) ([]EventType, error) {
	keys, err := m.events.Keys(ctx, store.EscapePattern(identifier)+":*")
	if err != nil {
		return nil, err
	}
	prefix := identifier + ":"
	var types []EventType
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if eventType := EventType(key[len(prefix):]); eventType.Valid() {
			types = append(types, eventType)
		}
	}
	return types, nil
}

// GetEvents returns the events of identifier within the trailing window,
// newest first. An empty eventType reads every event type of identifier.
func (m *Monitor) GetEvents(ctx context.Context, identifier string, eventType EventType, window time.Duration) ([]Event, error) {
	now := m.now()
	from := now.Add(-defaultWindow(window))

	types := []EventType{eventType}
	if eventType == "" {
		var err error
		if types, err = m.eventTypesOf(ctx, identifier); err != nil {
			return nil, err
		}
	}

	var events []Event
	for _, t := range types {
		items, err := m.events.Range(ctx, eventKey(identifier, t), from, now)
		if err != nil {
			return nil, err
		}
		events = append(events, items...)
	}
	sortNewestFirst(events, func(e *Event) int64 { return e.Timestamp })
	return events, nil
}

// GetAlerts returns the alerts of identifier within the trailing window,
// newest first. A zero window covers the whole alert retention.
func (m *Monitor) GetAlerts(ctx context.Context, identifier string, window time.Duration) ([]Alert, error) {
	if window <= 0 {
		window = params.AlertRetention
	}
	now := m.now()
	alerts, err := m.alerts.Range(ctx, identifier, now.Add(-window), now)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(alerts, func(a *Alert) int64 { return a.Timestamp })
	return alerts, nil
}

func NewMonitor(storage store.Storage, opts ...Option) *Monitor {
	m := &Monitor{
		events:      store.NewSeries[Event](storage, params.EventKeyPrefix),
		alerts:      store.NewSeries[Alert](storage, params.AlertKeyPrefix),
		logger:      slog.Default(),
		now:         time.Now,
		hookTimeout: defaultHookTimeout,
		thresholds:  DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.idNode == nil {
		m.idNode, _ = snowflake.NewNode(1)
	}
	return m
}

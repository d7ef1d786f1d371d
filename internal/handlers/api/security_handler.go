package api

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/donorshield/internal/middlewares/signature"
	"github.com/khanghh/donorshield/internal/security"
	"github.com/khanghh/donorshield/params"
	"github.com/spf13/cast"
)

type SecurityHandler struct {
	monitor SecurityMonitor
}

// parseWindow reads the windowMs query parameter. Zero means the default of
// the read path; values above max are clamped.
func parseWindow(ctx *fiber.Ctx, max time.Duration) (time.Duration, error) {
	raw := ctx.Query("windowMs")
	if raw == "" {
		return 0, nil
	}
	ms, err := cast.ToInt64E(raw)
	if err != nil || ms < 0 {
		return 0, fiber.ErrBadRequest
	}
	return min(time.Duration(ms)*time.Millisecond, max), nil
}

func (h *SecurityHandler) GetEvents(ctx *fiber.Ctx) error {
	identifier := ctx.Query("identifier")
	if identifier == "" {
		return fiber.ErrBadRequest
	}
	var eventType security.EventType
	if raw := ctx.Query("type"); raw != "" {
		var err error
		if eventType, err = security.ParseEventType(raw); err != nil {
			return fiber.ErrBadRequest
		}
	}
	window, err := parseWindow(ctx, params.EventRetention)
	if err != nil {
		return err
	}
	if window == 0 {
		window = params.DefaultEventQueryWindow
	}

	events, err := h.monitor.GetEvents(ctx.UserContext(), identifier, eventType, window)
	if err != nil {
		return err
	}
	if events == nil {
		events = []security.Event{}
	}
	return ctx.JSON(NewDataResponse(eventsResponse{
		Identifier: identifier,
		WindowMs:   window.Milliseconds(),
		Events:     events,
	}))
}

func (h *SecurityHandler) GetAlerts(ctx *fiber.Ctx) error {
	identifier := ctx.Query("identifier")
	if identifier == "" {
		return fiber.ErrBadRequest
	}
	window, err := parseWindow(ctx, params.AlertRetention)
	if err != nil {
		return err
	}
	if window == 0 {
		window = params.AlertRetention
	}

	alerts, err := h.monitor.GetAlerts(ctx.UserContext(), identifier, window)
	if err != nil {
		return err
	}
	if alerts == nil {
		alerts = []security.Alert{}
	}
	return ctx.JSON(NewDataResponse(alertsResponse{
		Identifier: identifier,
		WindowMs:   window.Milliseconds(),
		Alerts:     alerts,
	}))
}

// PostEvent ingests an event reported by another service. The body has
// already been authenticated by the signature middleware.
func (h *SecurityHandler) PostEvent(ctx *fiber.Ctx) error {
	var req ingestEventRequest
	if err := json.Unmarshal(signature.Data(ctx), &req); err != nil || req.Identifier == "" {
		return fiber.ErrBadRequest
	}
	eventType, err := security.ParseEventType(req.Type)
	if err != nil {
		return SendError(ctx, fiber.StatusBadRequest, APIErrorDetail{
			Domain:  "security",
			Reason:  "unknownEventType",
			Message: "Unknown event type.",
		})
	}
	var severity security.Severity
	if req.Severity != "" {
		if severity, err = security.ParseSeverity(req.Severity); err != nil {
			return fiber.ErrBadRequest
		}
	}

	h.monitor.LogEvent(ctx.UserContext(), security.Event{
		Type:       eventType,
		Severity:   severity,
		Identifier: req.Identifier,
		Endpoint:   req.Endpoint,
		Details:    req.Details,
		Metadata:   req.Metadata,
	})
	return ctx.Status(fiber.StatusAccepted).JSON(NewDataResponse(nil))
}

func NewSecurityHandler(monitor SecurityMonitor) *SecurityHandler {
	return &SecurityHandler{
		monitor: monitor,
	}
}

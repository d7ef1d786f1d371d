package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/khanghh/donorshield/internal/security"
)

const APIVersion = "1.0"

type APIResponse struct {
	APIVersion string        `json:"apiVersion"`
	Data       any           `json:"data,omitempty"`
	Error      *APIErrorInfo `json:"error,omitempty"`
}

type APIErrorInfo struct {
	Code    int              `json:"code"`
	Message string           `json:"message"`
	Errors  []APIErrorDetail `json:"errors,omitempty"`
}

type APIErrorDetail struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func NewDataResponse(data any) APIResponse {
	return APIResponse{
		APIVersion: APIVersion,
		Data:       data,
	}
}

func NewErrorResponse(code int, message string, details ...APIErrorDetail) APIResponse {
	return APIResponse{
		APIVersion: APIVersion,
		Error: &APIErrorInfo{
			Code:    code,
			Message: message,
			Errors:  details,
		},
	}
}

// SendError writes the error envelope with the default status text of code.
func SendError(ctx *fiber.Ctx, code int, details ...APIErrorDetail) error {
	return ctx.Status(code).JSON(NewErrorResponse(code, utils.StatusMessage(code), details...))
}

type csrfTokenResponse struct {
	Token string `json:"token"`
}

type mfaEnableRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

type mfaVerifyRequest struct {
	Code string `json:"code"`
}

type mfaVerifyResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type mfaStatusResponse struct {
	Enabled bool `json:"enabled"`
}

type eventsResponse struct {
	Identifier string           `json:"identifier"`
	WindowMs   int64            `json:"windowMs"`
	Events     []security.Event `json:"events"`
}

type alertsResponse struct {
	Identifier string           `json:"identifier"`
	WindowMs   int64            `json:"windowMs"`
	Alerts     []security.Alert `json:"alerts"`
}

// ingestEventRequest is the payload of a signed envelope posted by another
// service that detected a security event.
type ingestEventRequest struct {
	Type       string         `json:"type"`
	Severity   string         `json:"severity,omitempty"`
	Identifier string         `json:"identifier"`
	Endpoint   string         `json:"endpoint,omitempty"`
	Details    string         `json:"details,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

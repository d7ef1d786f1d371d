package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/donorshield/internal/mfa"
	"github.com/khanghh/donorshield/internal/middlewares/csrf"
	"github.com/khanghh/donorshield/internal/middlewares/sessions"
	"github.com/khanghh/donorshield/params"
)

type MFAHandler struct {
	mfaService MFAService
	monitor    SecurityMonitor
}

func (h *MFAHandler) GetCSRFToken(ctx *fiber.Ctx) error {
	token, err := csrf.Get(sessions.Get(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(csrfTokenResponse{Token: token}))
}

func (h *MFAHandler) GetStatus(ctx *fiber.Ctx) error {
	enabled, err := h.mfaService.IsEnabled(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(mfaStatusResponse{Enabled: enabled}))
}

// canEnroll allows the first enrollment to anyone and a rotation only to
// an admin.
func (h *MFAHandler) canEnroll(ctx *fiber.Ctx) (bool, error) {
	enabled, err := h.mfaService.IsEnabled(ctx.UserContext())
	if err != nil {
		return false, err
	}
	return !enabled || isAdmin(ctx, h.mfaService, h.monitor), nil
}

func (h *MFAHandler) PostSetup(ctx *fiber.Ctx) error {
	allowed, err := h.canEnroll(ctx)
	if err != nil {
		return err
	}
	if !allowed {
		return fiber.ErrUnauthorized
	}
	enrollment, err := h.mfaService.Setup(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(enrollment))
}

func (h *MFAHandler) PostEnable(ctx *fiber.Ctx) error {
	allowed, err := h.canEnroll(ctx)
	if err != nil {
		return err
	}
	if !allowed {
		return fiber.ErrUnauthorized
	}
	var req mfaEnableRequest
	if err := ctx.BodyParser(&req); err != nil || req.Secret == "" || req.Code == "" {
		return fiber.ErrBadRequest
	}
	err = h.mfaService.Enable(ctx.UserContext(), req.Secret, req.Code)
	if errors.Is(err, mfa.ErrInvalidCode) {
		return SendError(ctx, fiber.StatusBadRequest, APIErrorDetail{
			Domain:  "mfa",
			Reason:  "invalidCode",
			Message: "The verification code is not valid.",
		})
	}
	if err != nil {
		return err
	}
	slog.Info("TOTP factor enabled", "ip", ctx.IP())
	return ctx.JSON(NewDataResponse(mfaStatusResponse{Enabled: true}))
}

func (h *MFAHandler) PostVerify(ctx *fiber.Ctx) error {
	var req mfaVerifyRequest
	if err := ctx.BodyParser(&req); err != nil || req.Code == "" {
		return fiber.ErrBadRequest
	}
	token, err := h.mfaService.Verify(ctx.UserContext(), ctx.IP(), req.Code)
	switch {
	case errors.Is(err, mfa.ErrMFANotEnabled):
		return SendError(ctx, fiber.StatusConflict)
	case errors.Is(err, mfa.ErrInvalidCode), errors.Is(err, mfa.ErrCodeReused):
		return SendError(ctx, fiber.StatusUnauthorized)
	case err != nil:
		return err
	}

	session := sessions.Get(ctx)
	data := session.SessionData
	data.MFAVerifiedAt = time.Now()
	if err := session.Reset(data); err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(mfaVerifyResponse{
		Token:     token,
		ExpiresIn: int64(params.AdminTokenExpiration.Seconds()),
	}))
}

// PostLogout drops the session, which also stops any admin token issued to
// it from being accepted.
func (h *MFAHandler) PostLogout(ctx *fiber.Ctx) error {
	if err := sessions.Destroy(ctx); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func NewMFAHandler(mfaService MFAService, monitor SecurityMonitor) *MFAHandler {
	return &MFAHandler{
		mfaService: mfaService,
		monitor:    monitor,
	}
}

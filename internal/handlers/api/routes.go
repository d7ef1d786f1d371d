package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/donorshield/internal/middlewares/csrf"
	"github.com/khanghh/donorshield/internal/middlewares/ratelimit"
	"github.com/khanghh/donorshield/internal/middlewares/sessions"
	"github.com/khanghh/donorshield/internal/middlewares/signature"
)

type RoutesConfig struct {
	Sessions  sessions.Config
	RateLimit ratelimit.Config
	Signature signature.Config
}

// SetupRoutes mounts the JSON API. The signed ingestion endpoint is
// registered first so that it never reaches the session and CSRF layers,
// and only when a signing secret is configured.
func SetupRoutes(router fiber.Router, config RoutesConfig, mfaService MFAService, monitor SecurityMonitor) {
	var (
		mfaHandler      = NewMFAHandler(mfaService, monitor)
		securityHandler = NewSecurityHandler(monitor)
	)

	config.RateLimit.Logger = monitor
	config.Signature.Logger = monitor
	router.Use(ratelimit.New(config.RateLimit))
	if config.Signature.Secret != "" {
		router.Post("/api/internal/events", signature.New(config.Signature), securityHandler.PostEvent)
	}

	api := router.Group("/api", sessions.New(config.Sessions), csrf.New(csrf.Config{Logger: monitor}))
	api.Get("/csrf", mfaHandler.GetCSRFToken)
	api.Get("/mfa/status", mfaHandler.GetStatus)
	api.Post("/mfa/setup", mfaHandler.PostSetup)
	api.Post("/mfa/enable", mfaHandler.PostEnable)
	api.Post("/mfa/verify", mfaHandler.PostVerify)
	api.Post("/mfa/logout", mfaHandler.PostLogout)

	admin := api.Group("/security", RequireAdmin(mfaService, monitor))
	admin.Get("/events", securityHandler.GetEvents)
	admin.Get("/alerts", securityHandler.GetAlerts)
}

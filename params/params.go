package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	TOTPPeriod     = 30 * time.Second // time step of a TOTP code
	TOTPDigits     = 6                // number of digits of a TOTP code
	TOTPWindow     = 1                // accepted drift in periods, before and after the current one
	TOTPSecretSize = 20               // 160-bit shared secret
	TOTPIssuer     = "DonorShield"    // default issuer shown by authenticator apps
	TOTPAccount    = "admin"          // the single administrative account

	CSRFTokenSize       = 32 // random bytes, hex encoded to 64 chars
	CSRFTokenExpiration = 24 * time.Hour

	SecurityKeyPrefix       = "security:"          // namespace of every security key
	EventKeyPrefix          = "events:"            // events:{identifier}:{type}
	AlertKeyPrefix          = "alerts:"            // alerts:{identifier}
	TOTPSecretKey           = "mfa:totp_secret"    // encrypted TOTP secret
	TOTPLastStepKey         = "mfa:totp_last_step" // last accepted TOTP time step
	EventRetention          = 24 * time.Hour       // raw events expire after a day
	AlertRetention          = 7 * 24 * time.Hour   // alerts are kept for audit review
	DefaultEventQueryWindow = 1 * time.Hour

	StoreConnectTimeout      = 5 * time.Second
	StoreMaxConnectAttempts  = 3
	StoreInitialBackoff      = 100 * time.Millisecond
	StoreMaxBackoff          = 3 * time.Second
	StoreHealthCheckInterval = 5 * time.Minute
	StoreScanCount           = 100

	SignedRequestMaxTTL   = 5 * time.Minute // longest envelope lifetime accepted
	AdminTokenExpiration  = 1 * time.Hour   // admin bearer token issued after TOTP verification
	RateLimitMax          = 60
	RateLimitWindow       = 1 * time.Minute
	HealthCheckServerAddr = ":3001" // health check server address
)

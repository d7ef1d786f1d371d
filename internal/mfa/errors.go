package mfa

import "errors"

var (
	ErrMFANotEnabled = errors.New("MFA is not enabled")
	ErrInvalidCode   = errors.New("invalid TOTP code")
	ErrCodeReused    = errors.New("TOTP code already used")
	ErrTokenInvalid  = errors.New("invalid admin token")
)

package signing

import "errors"

var (
	ErrEmptySecret      = errors.New("signing secret is empty")
	ErrInvalidSignature = errors.New("invalid request signature")
	ErrRequestExpired   = errors.New("signed request expired")
	ErrMalformedRequest = errors.New("malformed signed request")
	ErrLifetimeTooLong  = errors.New("signed request lifetime too long")
)

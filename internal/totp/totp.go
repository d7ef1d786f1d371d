// Package totp implements RFC 6238 time-based one-time passwords with a
// strict Base32 secret codec. Codes come from pquerna/otp's HOTP at the
// computed time step.
package totp

import (
	"time"

	"github.com/khanghh/donorshield/internal/common"
	"github.com/khanghh/donorshield/params"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const maxDigits = 9

// Opts holds the code parameters. The zero value is not usable, use
// DefaultOpts.
type Opts struct {
	Period time.Duration
	Digits int
	Window int
}

var DefaultOpts = Opts{
	Period: params.TOTPPeriod,
	Digits: params.TOTPDigits,
	Window: params.TOTPWindow,
}

// GenerateSecret returns a new 160-bit secret, Base32 encoded.
func GenerateSecret() (string, error) {
	raw, err := common.RandomBytes(params.TOTPSecretSize)
	if err != nil {
		return "", err
	}
	return EncodeBase32(raw), nil
}

// TimeStep returns the counter value of t for the given period.
func TimeStep(t time.Time, period time.Duration) int64 {
	return t.Unix() / int64(period/time.Second)
}

// canonicalSecret decodes secret strictly and re-encodes it so the hotp
// package only ever sees the plain RFC 4648 alphabet.
func canonicalSecret(secret string) (string, error) {
	key, err := DecodeBase32(secret)
	if err != nil {
		return "", err
	}
	if len(key) == 0 {
		return "", ErrEmptySecret
	}
	return EncodeBase32(key), nil
}

func codeAt(secret string, step int64, digits int) (string, error) {
	if digits <= 0 || digits > maxDigits {
		return "", ErrInvalidDigits
	}
	return hotp.GenerateCodeCustom(secret, uint64(step), hotp.ValidateOpts{
		Digits:    otp.Digits(digits),
		Algorithm: otp.AlgorithmSHA1,
	})
}

// GenerateCodeOpts returns the code for secret at t.
func GenerateCodeOpts(secret string, t time.Time, opts Opts) (string, error) {
	canonical, err := canonicalSecret(secret)
	if err != nil {
		return "", err
	}
	return codeAt(canonical, TimeStep(t, opts.Period), opts.Digits)
}

// GenerateCode returns the 6 digit code for secret at t.
func GenerateCode(secret string, t time.Time) (string, error) {
	return GenerateCodeOpts(secret, t, DefaultOpts)
}

// ValidateOpts checks code against the periods around t and returns the
// matching time step. Every candidate is computed and compared so a match in
// the previous period costs the same as one in the next.
func ValidateOpts(secret, code string, t time.Time, opts Opts) (int64, bool) {
	canonical, err := canonicalSecret(secret)
	if err != nil {
		return 0, false
	}
	current := TimeStep(t, opts.Period)
	var (
		matched int64
		ok      bool
	)
	for i := -opts.Window; i <= opts.Window; i++ {
		step := current + int64(i)
		expected, err := codeAt(canonical, step, opts.Digits)
		if err != nil {
			return 0, false
		}
		if common.ConstantTimeCompare(expected, code) && !ok {
			matched, ok = step, true
		}
	}
	return matched, ok
}

// Validate is ValidateOpts with the default parameters.
func Validate(secret, code string, t time.Time) (int64, bool) {
	return ValidateOpts(secret, code, t, DefaultOpts)
}

// Verify reports whether code is valid for secret at t, tolerating one
// period of clock drift in both directions.
func Verify(secret, code string, t time.Time) bool {
	_, ok := Validate(secret, code, t)
	return ok
}

// Package mfa enrolls and verifies the TOTP factor of the administrative
// account and issues the short lived admin token that follows a successful
// verification.
package mfa

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/khanghh/donorshield/internal/secrets"
	"github.com/khanghh/donorshield/internal/store"
	"github.com/khanghh/donorshield/internal/totp"
	"github.com/khanghh/donorshield/params"
)

// FailureLogger records failed verifications as security events.
type FailureLogger interface {
	LogAuthenticationFailure(ctx context.Context, identifier, reason string)
}

type Enrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRCode string `json:"qrCode"`
}

type AdminClaims struct {
	jwt.RegisteredClaims
}

type MFAService struct {
	vault     *secrets.Vault
	storage   store.Storage
	failures  FailureLogger
	masterKey string
	issuer    string
	account   string
	now       func() time.Time
}

type Option func(*MFAService)

func WithClock(now func() time.Time) Option {
	return func(s *MFAService) {
		s.now = now
	}
}

func WithAccount(issuer, account string) Option {
	return func(s *MFAService) {
		s.issuer = issuer
		s.account = account
	}
}

// Setup generates a fresh secret for the authenticator app. Nothing is
// stored until Enable confirms a code generated from it.
func (s *MFAService) Setup(ctx context.Context) (*Enrollment, error) {
	secret, err := totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	qrCode, err := totp.QRCode(s.issuer, s.account, secret)
	if err != nil {
		return nil, err
	}
	return &Enrollment{
		Secret: secret,
		URI:    totp.ProvisioningURI(s.issuer, s.account, secret),
		QRCode: qrCode,
	}, nil
}

// Enable stores secret once code proves the authenticator is set up. An
// existing secret is replaced.
func (s *MFAService) Enable(ctx context.Context, secret, code string) error {
	step, ok := totp.Validate(secret, code, s.now())
	if !ok {
		return ErrInvalidCode
	}
	if err := s.vault.StoreTOTPSecret(ctx, secret); err != nil {
		return err
	}
	return s.setLastStep(ctx, step)
}

func (s *MFAService) Disable(ctx context.Context) error {
	if err := s.vault.DeleteTOTPSecret(ctx); err != nil {
		return err
	}
	err := s.storage.Delete(ctx, params.TOTPLastStepKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (s *MFAService) IsEnabled(ctx context.Context) (bool, error) {
	return s.vault.IsMFAEnabled(ctx)
}

func (s *MFAService) lastStep(ctx context.Context) (int64, error) {
	val, err := s.storage.Get(ctx, params.TOTPLastStepKey)
	if errors.Is(err, store.ErrNotFound) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (s *MFAService) setLastStep(ctx context.Context, step int64) error {
	// once the window has moved past step every later code is newer anyway
	ttl := time.Duration(2*params.TOTPWindow+1) * params.TOTPPeriod
	return s.storage.Set(ctx, params.TOTPLastStepKey, strconv.FormatInt(step, 10), ttl)
}

// Verify checks code against the stored secret and returns a signed admin
// token. A time step is accepted at most once. Failures are logged against
// identifier as authentication failures.
func (s *MFAService) Verify(ctx context.Context, identifier, code string) (string, error) {
	secret, err := s.vault.GetTOTPSecret(ctx)
	if errors.Is(err, secrets.ErrSecretNotFound) {
		return "", ErrMFANotEnabled
	}
	if err != nil {
		return "", err
	}

	step, ok := totp.Validate(secret, code, s.now())
	if !ok {
		s.failures.LogAuthenticationFailure(ctx, identifier, "invalid TOTP code")
		return "", ErrInvalidCode
	}
	last, err := s.lastStep(ctx)
	if err != nil {
		return "", err
	}
	if step <= last {
		s.failures.LogAuthenticationFailure(ctx, identifier, "reused TOTP code")
		return "", ErrCodeReused
	}
	if err := s.setLastStep(ctx, step); err != nil {
		return "", err
	}
	return s.issueToken()
}

func (s *MFAService) issueToken() (string, error) {
	now := s.now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   s.account,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(params.AdminTokenExpiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.masterKey))
}

// ValidateToken parses and verifies an admin token issued by Verify.
func (s *MFAService) ValidateToken(tokenStr string) (*AdminClaims, error) {
	var claims AdminClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.masterKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithSubject(s.account),
	)
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

func NewMFAService(vault *secrets.Vault, storage store.Storage, failures FailureLogger, masterKey string, opts ...Option) *MFAService {
	s := &MFAService{
		vault:     vault,
		storage:   storage,
		failures:  failures,
		masterKey: masterKey,
		issuer:    params.TOTPIssuer,
		account:   params.TOTPAccount,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

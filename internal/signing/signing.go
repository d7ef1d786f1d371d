// Package signing signs payloads exchanged between internal services with
// HMAC-SHA256.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Canonicalize returns the bytes that get signed: strings and byte slices
// as-is, everything else as its JSON encoding.
func Canonicalize(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func computeMAC(message []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return mac.Sum(nil)
}

// Sign returns the hex encoded HMAC-SHA256 of payload under secret.
func Sign(payload any, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	message, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(computeMAC(message, secret)), nil
}

// Verify reports whether signature is the signature of payload under secret.
// A signature that is not valid hex is treated as a mismatch.
func Verify(payload any, signature string, secret string) bool {
	if secret == "" {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	message, err := Canonicalize(payload)
	if err != nil {
		return false
	}
	return hmac.Equal(sig, computeMAC(message, secret))
}

// SignedRequest is a payload wrapped together with its validity period.
// Timestamp and ExpiresAt are unix milliseconds and are covered by the
// signature.
type SignedRequest struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	ExpiresAt int64           `json:"expiresAt"`
	Signature string          `json:"signature"`
}

type signedEnvelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	ExpiresAt int64           `json:"expiresAt"`
}

func (r *SignedRequest) envelope() signedEnvelope {
	return signedEnvelope{
		Data:      r.Data,
		Timestamp: r.Timestamp,
		ExpiresAt: r.ExpiresAt,
	}
}

// IsExpired reports whether the envelope is past its expiry at now.
func (r *SignedRequest) IsExpired(now time.Time) bool {
	return now.UnixMilli() > r.ExpiresAt
}

// Lifetime is the validity period the envelope claims for itself.
func (r *SignedRequest) Lifetime() time.Duration {
	return time.Duration(r.ExpiresAt-r.Timestamp) * time.Millisecond
}

// CreateSignedRequest wraps data into an envelope valid for ttl from now.
func CreateSignedRequest(data any, secret string, ttl time.Duration, now time.Time) (*SignedRequest, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req := &SignedRequest{
		Data:      raw,
		Timestamp: now.UnixMilli(),
		ExpiresAt: now.Add(ttl).UnixMilli(),
	}
	req.Signature, err = Sign(req.envelope(), secret)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// VerifySignedRequest returns ErrRequestExpired for an envelope past its
// expiry and ErrInvalidSignature when the signature does not match. The two
// checks are independent: an expired envelope is rejected even when its
// signature is valid.
func VerifySignedRequest(req *SignedRequest, secret string, now time.Time) error {
	if req == nil || len(req.Data) == 0 || req.Signature == "" {
		return ErrMalformedRequest
	}
	if req.IsExpired(now) {
		return ErrRequestExpired
	}
	if !Verify(req.envelope(), req.Signature, secret) {
		return ErrInvalidSignature
	}
	return nil
}

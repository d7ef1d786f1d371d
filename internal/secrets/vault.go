// Package secrets persists the administrative TOTP secret encrypted with
// AES-256-GCM under a key derived from the server master key.
package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"

	"github.com/khanghh/donorshield/internal/common"
	"github.com/khanghh/donorshield/internal/store"
	"github.com/khanghh/donorshield/params"
	"golang.org/x/crypto/hkdf"
)

const (
	ivSize  = 16
	tagSize = 16
	keySize = 32
)

var (
	ErrMissingMasterKey = errors.New("missing master key")
	ErrSecretNotFound   = errors.New("TOTP secret not found")
	ErrDecryptFailed    = errors.New("could not decrypt TOTP secret")
)

var keyDerivationInfo = []byte("donorshield totp secret v1")

// EncryptedSecret is the persisted form. All fields are hex encoded.
type EncryptedSecret struct {
	IV        string `json:"iv"`
	AuthTag   string `json:"authTag"`
	Encrypted string `json:"encrypted"`
}

type Vault struct {
	storage store.Storage
	aead    cipher.AEAD
}

func deriveKey(masterKey string) ([]byte, error) {
	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(masterKey), nil, keyDerivationInfo)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (v *Vault) encrypt(plaintext string) (*EncryptedSecret, error) {
	iv, err := common.RandomBytes(ivSize)
	if err != nil {
		return nil, err
	}
	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	split := len(sealed) - tagSize
	return &EncryptedSecret{
		IV:        hex.EncodeToString(iv),
		AuthTag:   hex.EncodeToString(sealed[split:]),
		Encrypted: hex.EncodeToString(sealed[:split]),
	}, nil
}

func (v *Vault) decrypt(record *EncryptedSecret) (string, error) {
	iv, err := hex.DecodeString(record.IV)
	if err != nil || len(iv) != ivSize {
		return "", ErrDecryptFailed
	}
	tag, err := hex.DecodeString(record.AuthTag)
	if err != nil || len(tag) != tagSize {
		return "", ErrDecryptFailed
	}
	ciphertext, err := hex.DecodeString(record.Encrypted)
	if err != nil {
		return "", ErrDecryptFailed
	}
	plaintext, err := v.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

// StoreTOTPSecret encrypts and stores secret, replacing any previous one.
func (v *Vault) StoreTOTPSecret(ctx context.Context, secret string) error {
	record, err := v.encrypt(secret)
	if err != nil {
		return err
	}
	blob, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return v.storage.Set(ctx, params.TOTPSecretKey, string(blob), 0)
}

// GetTOTPSecret returns the decrypted secret. A record that fails
// authentication returns ErrDecryptFailed, never a partial value.
func (v *Vault) GetTOTPSecret(ctx context.Context) (string, error) {
	blob, err := v.storage.Get(ctx, params.TOTPSecretKey)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrSecretNotFound
	}
	if err != nil {
		return "", err
	}
	var record EncryptedSecret
	if err := json.Unmarshal([]byte(blob), &record); err != nil {
		return "", ErrDecryptFailed
	}
	return v.decrypt(&record)
}

func (v *Vault) IsMFAEnabled(ctx context.Context) (bool, error) {
	_, err := v.storage.Get(ctx, params.TOTPSecretKey)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (v *Vault) DeleteTOTPSecret(ctx context.Context) error {
	err := v.storage.Delete(ctx, params.TOTPSecretKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func NewVault(storage store.Storage, masterKey string) (*Vault, error) {
	if masterKey == "" {
		return nil, ErrMissingMasterKey
	}
	key, err := deriveKey(masterKey)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, err
	}
	return &Vault{
		storage: storage,
		aead:    aead,
	}, nil
}

package common

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// ConstantTimeCompare reports whether a and b are equal. A length mismatch
// returns immediately; otherwise every byte is compared so the running time
// does not depend on the position of the first difference.
func ConstantTimeCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RandomBytes returns n bytes read from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomHex returns n random bytes hex encoded, so the result has 2n chars.
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

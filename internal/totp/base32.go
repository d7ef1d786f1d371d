package totp

import (
	"encoding/base32"
	"strings"
)

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var base32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeBase32 encodes b with the RFC 4648 alphabet and no padding.
func EncodeBase32(b []byte) string {
	return base32NoPadding.EncodeToString(b)
}

// DecodeBase32 decodes s after stripping trailing '='. Only ASCII letters
// are case folded; any other rune outside the alphabet is rejected.
// Leftover bits that do not fill a byte are discarded, which is what
// authenticator apps do with secrets whose length is not a multiple of 8.
func DecodeBase32(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	out := make([]byte, 0, len(s)*5/8)
	var (
		buffer uint32
		bits   uint
	)
	for pos, ch := range s {
		if 'a' <= ch && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		idx := strings.IndexRune(base32Alphabet, ch)
		if idx < 0 {
			return nil, NewInvalidCharacterError(ch, pos)
		}
		buffer = buffer<<5 | uint32(idx)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buffer>>bits))
			buffer &= 1<<bits - 1
		}
	}
	return out, nil
}

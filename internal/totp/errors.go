package totp

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySecret   = errors.New("empty TOTP secret")
	ErrInvalidDigits = errors.New("invalid number of digits")
)

// InvalidCharacterError is returned when a Base32 string contains a
// character outside of the RFC 4648 alphabet.
type InvalidCharacterError struct {
	Char rune
	Pos  int
}

func (e *InvalidCharacterError) Error() string {
	return fmt.Sprintf("invalid base32 character %q at position %d", e.Char, e.Pos)
}

func NewInvalidCharacterError(char rune, pos int) *InvalidCharacterError {
	return &InvalidCharacterError{
		Char: char,
		Pos:  pos,
	}
}

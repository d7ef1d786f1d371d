package totp

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	pqtotp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 6238 appendix B SHA1 secret, truncated to 6 digits.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerateCode_RFC6238Vectors(t *testing.T) {
	vectors := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}
	for _, v := range vectors {
		code, err := GenerateCode(rfcSecret, time.Unix(v.unix, 0))
		require.NoError(t, err)
		assert.Equal(t, v.code, code, "unix time %d", v.unix)
	}
}

func TestGenerateCode_KnownSecret(t *testing.T) {
	code, err := GenerateCode("JBSWY3DPEHPK3PXP", time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Equal(t, "324550", code)

	code, err = GenerateCode("jbswy3dpehpk3pxp", time.Unix(59, 0))
	require.NoError(t, err)
	assert.Equal(t, "996554", code)
}

func TestGenerateCode_MatchesReferenceImplementation(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)
	now := time.Now()
	want, err := pqtotp.GenerateCodeCustom(secret, now, pqtotp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	got, err := GenerateCode(secret, now)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGenerateCode_InvalidSecret(t *testing.T) {
	_, err := GenerateCode("NOT-BASE32!", time.Now())
	var charErr *InvalidCharacterError
	require.True(t, errors.As(err, &charErr))
	assert.Equal(t, '-', charErr.Char)
	assert.Equal(t, 3, charErr.Pos)

	_, err = GenerateCode("", time.Now())
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestVerify_Window(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	at := time.Unix(1700000000, 0)
	code, err := GenerateCode(secret, at)
	require.NoError(t, err)

	assert.True(t, Verify(secret, code, at))
	assert.True(t, Verify(secret, code, at.Add(DefaultOpts.Period)))
	assert.True(t, Verify(secret, code, at.Add(-DefaultOpts.Period)))
	assert.False(t, Verify(secret, code, at.Add(2*DefaultOpts.Period)))
	assert.False(t, Verify(secret, code, at.Add(-2*DefaultOpts.Period)))
}

func TestVerify_Rejects(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	at := time.Unix(1700000000, 0)
	assert.False(t, Verify(secret, "000000", at))
	assert.False(t, Verify(secret, "32455", at))
	assert.False(t, Verify(secret, "", at))
	assert.False(t, Verify("!!!!", "324550", at))
}

func TestValidate_ReturnsStep(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	at := time.Unix(1700000000, 0)
	code, err := GenerateCode(secret, at.Add(-DefaultOpts.Period))
	require.NoError(t, err)
	step, ok := Validate(secret, code, at)
	require.True(t, ok)
	assert.Equal(t, TimeStep(at, DefaultOpts.Period)-1, step)
}

func TestBase32_RoundTrip(t *testing.T) {
	for n := 0; n < 64; n++ {
		buf := make([]byte, n)
		_, err := rand.Read(buf)
		require.NoError(t, err)
		encoded := EncodeBase32(buf)
		assert.NotContains(t, encoded, "=")
		decoded, err := DecodeBase32(encoded)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(buf, decoded), "length %d", n)
	}
}

func TestDecodeBase32(t *testing.T) {
	decoded, err := DecodeBase32("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello!\xde\xad\xbe\xef"), decoded)

	padded, err := DecodeBase32("MZXW6===")
	require.NoError(t, err)
	assert.Equal(t, []byte("foo"), padded)

	lower, err := DecodeBase32("mzxw6")
	require.NoError(t, err)
	assert.Equal(t, []byte("foo"), lower)

	_, err = DecodeBase32("MZXW1")
	var charErr *InvalidCharacterError
	require.ErrorAs(t, err, &charErr)
	assert.Equal(t, '1', charErr.Char)

	// Unicode case mapping folds these onto I and S; they must not decode.
	for _, input := range []string{"MZXW\u0131", "MZXW\u017f", "\u017f\u017f\u017f\u017f"} {
		_, err = DecodeBase32(input)
		require.ErrorAs(t, err, &charErr, "input %q", input)
	}
	_, err = DecodeBase32("MZXW\u0131")
	require.ErrorAs(t, err, &charErr)
	assert.Equal(t, '\u0131', charErr.Char)
	assert.Equal(t, 4, charErr.Pos)
}

func TestGenerateCode_RejectsNonASCIISecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	_, err := GenerateCode("JBSWY3DPEHPK3PX\u017f", now)
	var charErr *InvalidCharacterError
	require.ErrorAs(t, err, &charErr)
	assert.Equal(t, 15, charErr.Pos)

	code, err := GenerateCode("SSSSSSSSSSSSSSSS", now)
	require.NoError(t, err)
	assert.False(t, Verify(strings.Repeat("\u017f", 16), code, now))
}

func TestGenerateCodeOpts_Digits(t *testing.T) {
	now := time.Unix(1111111109, 0)
	eight, err := GenerateCodeOpts(rfcSecret, now, Opts{Period: 30 * time.Second, Digits: 8, Window: 1})
	require.NoError(t, err)
	assert.Equal(t, "07081804", eight)

	for _, digits := range []int{0, -1, 10} {
		_, err = GenerateCodeOpts(rfcSecret, now, Opts{Period: 30 * time.Second, Digits: digits})
		assert.ErrorIs(t, err, ErrInvalidDigits, "digits %d", digits)
	}
}

func TestGenerateCode_MatchesHOTPCounter(t *testing.T) {
	now := time.Unix(1234567890, 0)
	want, err := hotp.GenerateCodeCustom(rfcSecret, uint64(TimeStep(now, DefaultOpts.Period)), hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	got, err := GenerateCode(strings.ToLower(rfcSecret), now)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGenerateSecret(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 32)
	raw, err := DecodeBase32(secret)
	require.NoError(t, err)
	assert.Len(t, raw, 20)
}

func TestProvisioningURI(t *testing.T) {
	uri := ProvisioningURI("DonorShield", "admin", "JBSWY3DPEHPK3PXP")
	assert.Equal(t, "otpauth://totp/DonorShield:admin?secret=JBSWY3DPEHPK3PXP&issuer=DonorShield&algorithm=SHA1&digits=6&period=30", uri)

	key, err := otp.NewKeyFromURL(uri)
	require.NoError(t, err)
	assert.Equal(t, "DonorShield", key.Issuer())
	assert.Equal(t, "admin", key.AccountName())
	assert.Equal(t, "JBSWY3DPEHPK3PXP", key.Secret())
}

func TestQRCode(t *testing.T) {
	dataURL, err := QRCode("DonorShield", "admin", "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))
}

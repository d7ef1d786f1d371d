package totp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"

	"github.com/pquerna/otp"
)

const qrCodeSize = 256

// ProvisioningURI returns the otpauth URI understood by authenticator apps.
func ProvisioningURI(issuer, account, secret string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=SHA1&digits=6&period=30",
		url.PathEscape(issuer), url.PathEscape(account), secret, url.QueryEscape(issuer))
}

// QRCode renders the provisioning URI as a PNG data URL.
func QRCode(issuer, account, secret string) (string, error) {
	key, err := otp.NewKeyFromURL(ProvisioningURI(issuer, account, secret))
	if err != nil {
		return "", err
	}
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

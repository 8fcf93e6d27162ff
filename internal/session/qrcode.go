package session

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const qrImageSize = 256

// EnrollmentQRCode renders the user's TOTP provisioning URI as a PNG,
// suitable for sending with spoiler protection and scheduled deletion.
func (s *Store) EnrollmentQRCode(userID int64, username string) ([]byte, error) {
	uri := s.ProvisioningURI(userID, username)

	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("session: encode qr: %w", err)
	}

	scaled, err := barcode.Scale(code, qrImageSize, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("session: scale qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("session: render qr png: %w", err)
	}
	return buf.Bytes(), nil
}

package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
)

const (
	OrderNumberPrefix  = "ORD-"
	TicketNumberPrefix = "TIX-"

	referenceBytes = 5
)

// GenerateCode returns n random bytes as upper-case hex.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateOTP returns a zero-padded numeric code of the given length.
func GenerateOTP(length int) (string, error) {
	const charset = "0123456789"
	limit := big.NewInt(int64(len(charset)))

	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}

// GenerateOrderNumber returns a reference like ORD-9F1C03A2B7.
func GenerateOrderNumber() (string, error) {
	code, err := GenerateCode(referenceBytes)
	if err != nil {
		return "", err
	}
	return OrderNumberPrefix + code, nil
}

// GenerateTicketNumber returns a reference like TIX-04B1E9CC3D.
func GenerateTicketNumber() (string, error) {
	code, err := GenerateCode(referenceBytes)
	if err != nil {
		return "", err
	}
	return TicketNumberPrefix + code, nil
}

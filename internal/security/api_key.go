package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// apiKeyPrefix is the prefix used for generated API keys.
const apiKeyPrefix = "fsn_"

// GenerateAPIKey creates a new random API key string.
func GenerateAPIKey() (token string, err error) {
	secret := make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	secretHex := hex.EncodeToString(secret)
	token = apiKeyPrefix + secretHex
	return token, nil
}

// GenerateVerificationCode returns a numeric-looking random code of the
// given length for email verification mails.
func GenerateVerificationCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	const digits = "0123456789"
	buf := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	for i := range buf {
		buf[i] = digits[int(buf[i])%len(digits)]
	}
	return string(buf), nil
}

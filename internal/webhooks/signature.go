package webhooks

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const secretBytes = 32

// GenerateSecret returns a new high-entropy delivery secret: 32 random bytes
// hex-encoded to 64 characters. Generated once per subscription at creation.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("webhooks: failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Sign computes the hex-encoded HMAC-SHA256 of body under the subscription
// secret. The result is sent in the X-Webhook-Signature header.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the signature and compares in constant time.
func Verify(secret string, body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hmac.Equal(h.Sum(nil), expected)
}

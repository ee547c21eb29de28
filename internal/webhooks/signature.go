package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Headers attached to every dispatch webhook delivery.
const (
	HeaderSignature = "X-Signature"
	HeaderEventType = "X-Event-Type"
	HeaderDelivery  = "X-Delivery-Id"
	HeaderAttempt   = "X-Delivery-Attempt"
)

// SignHMAC returns the lowercase hex HMAC-SHA256 of body under the subscription secret.
func SignHMAC(secret string, body []byte) string {
	return hex.EncodeToString(mac(secret, body))
}

// VerifyHMAC is the receiver side of SignHMAC. A "sha256=" prefix on the
// provided value is accepted.
func VerifyHMAC(secret string, body []byte, provided string) bool {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(provided), "sha256="))
	if err != nil || len(b) != sha256.Size {
		return false
	}
	return hmac.Equal(mac(secret, body), b)
}

func mac(secret string, body []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return h.Sum(nil)
}

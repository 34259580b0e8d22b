package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignHMAC returns hex(HMAC-SHA256(payload, secret)). Providers whose SDK ships a
// signature helper use that instead.
func SignHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC compares signature against the expected HMAC in constant time.
func VerifyHMAC(secret string, payload []byte, signature string) bool {
	expected := SignHMAC(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// CheckoutPayload is the message signed by the checkout flow: "orderId|paymentId".
func CheckoutPayload(orderId, paymentId string) []byte {
	return []byte(orderId + "|" + paymentId)
}

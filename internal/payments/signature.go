package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// signPayload computes the hex HMAC-SHA256 the gateway uses for
// checkout callbacks: the signed payload is "orderID|paymentID".
func signPayload(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyCheckoutSignature compares a received signature in constant time.
func verifyCheckoutSignature(orderID, paymentID, signature, secret string) bool {
	expected := signPayload(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

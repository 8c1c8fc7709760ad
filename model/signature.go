package model

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignature returns the hex-encoded HMAC-SHA256 of
// "<remoteOrderID>|<remotePaymentID>" keyed with the merchant secret. This is
// the signature scheme the gateway uses for payment confirmations.
func ComputeSignature(remoteOrderID, remotePaymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(remoteOrderID + "|" + remotePaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the expected signature and compares it against
// the supplied one in constant time.
func VerifySignature(remoteOrderID, remotePaymentID, secret, signature string) bool {
	expected := ComputeSignature(remoteOrderID, remotePaymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

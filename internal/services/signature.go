package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"safehaven-service/pkg/logger"
)

// SignatureValidator verifies that a webhook payload was signed by SafeHaven.
// Signatures are HMAC-SHA256 digests of the raw request body, hex encoded,
// carried in the X-SafeHaven-Signature header.
//
// The validator fails closed: an unconfigured secret, empty inputs, or any
// comparison anomaly all reject the payload.
type SignatureValidator struct {
	secret []byte
	log    *logger.Logger
}

func NewSignatureValidator(secret string, log *logger.Logger) *SignatureValidator {
	if log == nil {
		log = logger.NewNop()
	}
	return &SignatureValidator{secret: []byte(secret), log: log}
}

// Validate computes the expected digest over the raw payload bytes and
// compares it to the provided signature in constant time.
func (v *SignatureValidator) Validate(payload []byte, signature string) bool {
	if len(v.secret) == 0 {
		v.log.Warnf("webhook secret is not configured, rejecting signature")
		return false
	}
	if len(payload) == 0 || signature == "" {
		v.log.Warnf("empty payload or signature provided for validation")
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	computed := hex.EncodeToString(mac.Sum(nil))

	if len(computed) != len(signature) {
		v.log.Warnf("webhook signature length mismatch")
		return false
	}

	if subtle.ConstantTimeCompare([]byte(computed), []byte(signature)) != 1 {
		v.log.Warnf("webhook signature validation failed")
		return false
	}
	return true
}

// IsConfigured reports whether a signing secret is set. Used by the health
// endpoint and startup checks.
func (v *SignatureValidator) IsConfigured() bool {
	return len(v.secret) > 0
}

// Sign computes the signature for a payload. Exposed for tests and local
// tooling that need to produce valid deliveries.
func (v *SignatureValidator) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// signaturePrefix identifies the algorithm in the X-Webhook-Signature header.
const signaturePrefix = "sha256="

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// SignPayload computes the X-Webhook-Signature header value for a raw body.
// Returns "sha256=" followed by the lowercase hex-encoded digest.
func (s *HMACSignatureService) SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayload checks a signature header value against the raw body.
// Uses constant-time comparison to prevent timing attacks.
func (s *HMACSignatureService) VerifyPayload(secret string, body []byte, signature string) bool {
	expected := s.SignPayload(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignRequest computes HMAC-SHA256 of a canonical request string.
// Returns the lowercase hex-encoded digest without a prefix.
func (s *HMACSignatureService) SignRequest(secret string, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyRequest checks if signature matches HMAC-SHA256(secret, canonical).
// Uses constant-time comparison to prevent timing attacks.
func (s *HMACSignatureService) VerifyRequest(secret string, canonical string, signature string) bool {
	expected := s.SignRequest(secret, canonical)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// BuildCanonicalString constructs the canonical payload for request signing.
// Format: METHOD|PATH|TIMESTAMP|NONCE|BODY
func (s *HMACSignatureService) BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", method, path, timestamp, nonce, body)
}

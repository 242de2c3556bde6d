package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request
// body, optionally prefixed with "sha256=".
const SignatureHeader = "X-Webhook-Signature"

// VerifySignature checks the provider signature over the raw body. An empty
// secret always fails: unverifiable payloads are never processed.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}

	provided := strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	decoded, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

// Sign computes the hex signature for a body. Used by tests and by callers
// that need to emit signed payloads.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verifier authenticates webhook bodies for a single provider using that
// provider's shared secret. One independent instance per provider.
type Verifier struct {
	secret []byte
}

func New(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify computes HMAC-SHA256 over the exact raw request bytes and compares
// it in constant time against the hex-encoded signature from the provider.
// A missing secret or signature verifies as false; Verify never panics and
// has no side effects.
func (v *Verifier) Verify(rawBody []byte, providedSignature string) bool {
	if v == nil || len(v.secret) == 0 {
		return false
	}
	providedSignature = strings.TrimSpace(providedSignature)
	// Some providers prefix the digest, e.g. "sha256=<hex>".
	if i := strings.IndexByte(providedSignature, '='); i >= 0 && !isHex(providedSignature[:i]) {
		providedSignature = providedSignature[i+1:]
	}
	if providedSignature == "" {
		return false
	}
	provided, err := hex.DecodeString(providedSignature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	return hmac.Equal(expected, provided)
}

// Sign returns the hex-encoded HMAC-SHA256 digest of body. Used by tests and
// by outbound delivery tooling.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

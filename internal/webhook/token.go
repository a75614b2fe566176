package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// Credentials authenticate one webhook route. The token is static per
// (secret, key) pair, so the alerting platform can embed it in the
// payload template.
type Credentials struct {
	Secret string `json:"secret"`
	Key    string `json:"key"`
}

// Token derives the expected payload token for c.
func Token(c Credentials) string {
	mac := hmac.New(sha256.New, []byte(c.Secret))
	mac.Write([]byte(c.Key))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidToken compares a presented token in constant time.
func ValidToken(token string, c Credentials) bool {
	expected := Token(c)
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

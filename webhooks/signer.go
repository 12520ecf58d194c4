package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	HeaderTenantID  = "X-Relay-Tenant-Id"
	HeaderMessageID = "X-Relay-Message-Id"
	HeaderAttempt   = "X-Relay-Attempt"
	HeaderSignature = "X-Relay-Signature"

	signaturePrefix = "sha256="
)

type Signer interface {
	Sign(body []byte) string
}

// HMACSigner produces "sha256=<hex>" over the raw request body.
type HMACSigner struct {
	Secret string
}

func NewHMACSigner(secret string) Signer {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	return HMACSigner{Secret: secret}
}

func (s HMACSigner) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	_, _ = mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature header the way a callback receiver
// would.
func VerifySignature(secret string, body []byte, header string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	signature := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), signaturePrefix))
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("webhooks: decode hex signature: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	if subtle.ConstantTimeCompare(decoded, mac.Sum(nil)) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}

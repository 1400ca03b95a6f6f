package webhookauth

import (
	"crypto/hmac"
	"strconv"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/oracle"
)

const (
	HeaderTimestamp = "x-lg-timestamp"
	HeaderSignature = "x-lg-signature"
)

// HMACVerifier authenticates validator webhooks. The signature covers
// "timestamp.body" with a shared secret; stale timestamps are rejected to
// bound replay.
type HMACVerifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewHMACVerifier(secret string, maxAge time.Duration) (*HMACVerifier, error) {
	if secret == "" {
		return nil, domain.ConfigMissing("VALIDATOR_API_SECRET", "webhook shared secret is not configured")
	}
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	return &HMACVerifier{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

func (v *HMACVerifier) Verify(getHeader func(name string) string, body []byte) error {
	timestamp := getHeader(HeaderTimestamp)
	signature := getHeader(HeaderSignature)
	if timestamp == "" || signature == "" {
		return domain.Validation("WEBHOOK_UNSIGNED", "missing webhook signature headers")
	}

	issued, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.Validation("WEBHOOK_BAD_TIMESTAMP", "webhook timestamp is not a unix epoch")
	}
	age := v.now().Unix() - issued
	if age < 0 {
		age = -age
	}
	if age > int64(v.maxAge/time.Second) {
		return domain.Validation("WEBHOOK_STALE", "webhook timestamp outside accepted window")
	}

	expected := oracle.SignPayload(v.secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.Validation("WEBHOOK_BAD_SIGNATURE", "webhook signature mismatch")
	}
	return nil
}

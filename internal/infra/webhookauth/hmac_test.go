package webhookauth

import (
	"errors"
	"testing"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/oracle"
)

const testSecret = "validator-shared-secret"

func newTestVerifier(t *testing.T) *HMACVerifier {
	t.Helper()
	v, err := NewHMACVerifier(testSecret, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}
	v.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return v
}

func headerGetter(timestamp, signature string) func(string) string {
	return func(name string) string {
		switch name {
		case HeaderTimestamp:
			return timestamp
		case HeaderSignature:
			return signature
		}
		return ""
	}
}

func TestVerify_AcceptsSignedRequest(t *testing.T) {
	v := newTestVerifier(t)
	body := []byte(`{"type":"DEPEG_START","riskId":"0xabc"}`)
	timestamp := "1700000000"
	signature := oracle.SignPayload([]byte(testSecret), timestamp, body)

	if err := v.Verify(headerGetter(timestamp, signature), body); err != nil {
		t.Fatalf("Verify rejected a valid request: %v", err)
	}
}

func TestVerify_MissingHeaders(t *testing.T) {
	v := newTestVerifier(t)
	body := []byte(`{}`)

	err := v.Verify(headerGetter("", ""), body)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	var derr *domain.Error
	if !errors.As(err, &derr) || derr.Code != "WEBHOOK_UNSIGNED" {
		t.Fatalf("expected WEBHOOK_UNSIGNED, got %v", err)
	}
}

func TestVerify_BadTimestamp(t *testing.T) {
	v := newTestVerifier(t)
	body := []byte(`{}`)
	signature := oracle.SignPayload([]byte(testSecret), "not-a-number", body)

	err := v.Verify(headerGetter("not-a-number", signature), body)
	var derr *domain.Error
	if !errors.As(err, &derr) || derr.Code != "WEBHOOK_BAD_TIMESTAMP" {
		t.Fatalf("expected WEBHOOK_BAD_TIMESTAMP, got %v", err)
	}
}

func TestVerify_StaleTimestamp(t *testing.T) {
	v := newTestVerifier(t)
	body := []byte(`{}`)

	for _, timestamp := range []string{"1699999000", "1700001000"} {
		signature := oracle.SignPayload([]byte(testSecret), timestamp, body)
		err := v.Verify(headerGetter(timestamp, signature), body)
		var derr *domain.Error
		if !errors.As(err, &derr) || derr.Code != "WEBHOOK_STALE" {
			t.Fatalf("timestamp %s: expected WEBHOOK_STALE, got %v", timestamp, err)
		}
	}
}

func TestVerify_TamperedBody(t *testing.T) {
	v := newTestVerifier(t)
	timestamp := "1700000000"
	signature := oracle.SignPayload([]byte(testSecret), timestamp, []byte(`{"payout":"10"}`))

	err := v.Verify(headerGetter(timestamp, signature), []byte(`{"payout":"10000"}`))
	var derr *domain.Error
	if !errors.As(err, &derr) || derr.Code != "WEBHOOK_BAD_SIGNATURE" {
		t.Fatalf("expected WEBHOOK_BAD_SIGNATURE, got %v", err)
	}
}

func TestNewHMACVerifier_RequiresSecret(t *testing.T) {
	_, err := NewHMACVerifier("", time.Minute)
	if domain.KindOf(err) != domain.KindConfig {
		t.Fatalf("expected config error for empty secret, got %v", err)
	}
}

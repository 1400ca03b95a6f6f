package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Claim records one settlement attempt. Payout is immutable once created;
// status later advances to submitted/paid by external settlement.
type Claim struct {
	ID        string
	PolicyID  string
	Product   ProductType
	Status    ClaimStatus
	Payout    decimal.Decimal
	Payload   map[string]any
	Signature string
	ExpiresAt *time.Time
	TxHash    string
	CreatedAt time.Time
}

type ClaimQueueItem struct {
	ClaimID  string
	PolicyID string
	Product  ProductType
	RiskID   string
	Wallet   string
	Payout   decimal.Decimal
	QueuedAt time.Time
	Status   ClaimStatus
}

type ClaimPreview struct {
	PolicyID       string
	Product        ProductType
	PolicyType     PolicyType
	RiskID         string
	SettlementFrom int64
	SettlementTo   int64
	Payload        map[string]any
	PayoutEstimate decimal.Decimal
}

type ClaimSignature struct {
	PolicyID   string
	PolicyType PolicyType
	RiskID     string
	Domain     map[string]any
	TypedData  TypedData
	Payload    map[string]any
	Signature  string
	Payout     decimal.Decimal
	ExpiresAt  time.Time
}

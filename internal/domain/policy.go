package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedData is the client-facing EIP-712 envelope. Message values are
// decimal strings and plain numbers only, never wide-integer types, so the
// bundle can be consumed by any JSON client as-is.
type TypedData struct {
	Domain      map[string]any              `json:"domain"`
	Types       map[string][]TypedDataField `json:"types"`
	PrimaryType string                      `json:"primaryType"`
	Message     map[string]any              `json:"message"`
}

// MintParams mirrors the tuple the distributor's purchase call expects.
// Amounts are atomic integer strings.
type MintParams struct {
	PolicyType    uint8  `json:"policyType"`
	RiskID        string `json:"riskId"`
	InsuredAmount string `json:"insuredAmount"`
	CoverageCap   string `json:"coverageCap"`
	DeductibleBps uint32 `json:"deductibleBps"`
	StartAt       int64  `json:"startAt"`
	ActiveAt      int64  `json:"activeAt"`
	EndAt         int64  `json:"endAt"`
	ExtraData     string `json:"extraData"`
}

// MintCalldata is everything the buyer needs for the on-chain purchase call.
type MintCalldata struct {
	Signature          string     `json:"signature"`
	Deadline           int64      `json:"deadline"`
	Nonce              string     `json:"nonce"`
	MintParams         MintParams `json:"mintParams"`
	TypedData          TypedData  `json:"typedData"`
	DistributorAddress string     `json:"distributorAddress"`
	ExtraData          string     `json:"extraData"`
	PremiumAtomic      string     `json:"premiumAtomic"`
	CoverageCapAtomic  string     `json:"coverageCapAtomic"`
}

// PolicyDraft is an unconfirmed signed offer. It binds nothing beyond its
// signature's deadline; finalization retires it atomically.
type PolicyDraft struct {
	ID             string
	Wallet         string
	Product        ProductType
	PolicyType     PolicyType
	RiskID         string
	TermDays       TermDays
	InsuredAmount  string // atomic for AAVE_DLP, native LP units for DEPEG_LP
	PremiumUSD     decimal.Decimal
	CoverageCapUSD decimal.Decimal
	DeductibleBps  int
	StartAt        int64
	ActiveAt       int64
	EndAt          int64
	TermsHash      string
	Params         map[string]any
	Breakdown      map[string]any
	Calldata       MintCalldata
	Metadata       map[string]any
	CreatedAt      time.Time
}

// Policy is the canonical on-chain-confirmed coverage record, keyed by the
// policy token id. Never deleted; nonce strictly increases per settlement.
type Policy struct {
	ID             string
	DraftID        string
	Wallet         string
	Product        ProductType
	PolicyType     PolicyType
	RiskID         string
	InsuredAmount  string
	CoverageCapUSD decimal.Decimal
	DeductibleBps  int
	TermDays       TermDays
	StartAt        int64
	ActiveAt       int64
	EndAt          int64
	ClaimedUpTo    int64
	Nonce          int64
	Status         PolicyStatus
	Metadata       map[string]any
	NFTTokenID     string
	CreatedAt      time.Time
}

// InsuredUSD interprets the stored insured amount per product: AAVE_DLP
// amounts are 6-decimal atomics, DEPEG_LP amounts are native LP units.
func (p Policy) InsuredUSD() decimal.Decimal {
	raw, err := decimal.NewFromString(p.InsuredAmount)
	if err != nil {
		return decimal.Zero
	}
	if p.PolicyType == PolicyTypeAaveDLP {
		return raw.Shift(-6)
	}
	return raw
}

func (p Policy) MetadataString(key string) string {
	if p.Metadata == nil {
		return ""
	}
	if v, ok := p.Metadata[key].(string); ok {
		return v
	}
	return ""
}

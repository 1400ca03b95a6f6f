package domain

import "time"

type AnchorKind string

const (
	AnchorDepegStart  AnchorKind = "DEPEG_START"
	AnchorDepegEnd    AnchorKind = "DEPEG_END"
	AnchorDepegLiq    AnchorKind = "DEPEG_LIQ"
	AnchorLiquidation AnchorKind = "LIQUIDATION"
)

func (k AnchorKind) Valid() bool {
	switch k {
	case AnchorDepegStart, AnchorDepegEnd, AnchorDepegLiq, AnchorLiquidation:
		return true
	}
	return false
}

// AnchorEnvelope is a validator-pushed attestation before normalization.
// Payload fields are loosely typed on the wire; the evidence ledger
// normalizes them or rejects the envelope.
type AnchorEnvelope struct {
	Kind         AnchorKind     `json:"type"`
	Payload      map[string]any `json:"payload"`
	SnapshotCID  string         `json:"ipfsCID"`
	ValidatorSig string         `json:"validatorSig"`
}

// AnchorPoint pins one half of a depeg window: an attested timestamp and
// TWAP value plus the content-addressed snapshot behind them.
type AnchorPoint struct {
	Timestamp   int64
	TwapE18     string
	SnapshotCID string
	TxHash      string
	CreatedAt   time.Time
}

type AnchorWindow struct {
	RiskID string
	Start  *AnchorPoint
	End    *AnchorPoint
}

type LiquidationEvidence struct {
	RiskID        string
	LiquidationID string
	User          string
	Timestamp     int64
	TwapE18       string
	HFBeforeE4    int64
	HFAfterE4     int64
	SnapshotCID   string
	TxHash        string
	CreatedAt     time.Time
}

type WhitelistAction string

const (
	WhitelistAdd    WhitelistAction = "ADD"
	WhitelistRemove WhitelistAction = "REMOVE"
	WhitelistUpdate WhitelistAction = "UPDATE"
)

type WhitelistRequest struct {
	Action  WhitelistAction `json:"action"`
	PoolID  string          `json:"poolId"`
	Payload map[string]any  `json:"payload,omitempty"`
}

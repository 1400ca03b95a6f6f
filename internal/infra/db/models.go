package db

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PolicyDraftModel struct {
	ID               string          `gorm:"primaryKey"`
	Wallet           string          `gorm:"index;not null"`
	Product          string          `gorm:"not null"`
	PolicyType       string          `gorm:"not null"`
	RiskID           string          `gorm:"index;not null"`
	TermDays         int             `gorm:"not null"`
	InsuredAmount    string          `gorm:"type:numeric(78,0);not null"`
	PremiumUSD       decimal.Decimal `gorm:"type:numeric(78,6);not null"`
	CoverageCapUSD   decimal.Decimal `gorm:"type:numeric(78,6);not null"`
	DeductibleBps    int             `gorm:"not null"`
	StartAt          int64           `gorm:"not null"`
	ActiveAt         int64           `gorm:"not null"`
	EndAt            int64           `gorm:"not null"`
	TermsHash        string          `gorm:"not null"`
	Params           datatypes.JSONMap
	PricingBreakdown datatypes.JSONMap
	OnchainCalldata  datatypes.JSON
	Metadata         datatypes.JSONMap
	CreatedAt        time.Time `gorm:"not null"`
}

func (PolicyDraftModel) TableName() string { return "policy_drafts" }

type PolicyModel struct {
	ID             string          `gorm:"primaryKey"`
	DraftID        *string         `gorm:""`
	Wallet         string          `gorm:"index;not null"`
	Product        string          `gorm:"not null"`
	PolicyType     string          `gorm:"not null"`
	RiskID         string          `gorm:"index;not null"`
	InsuredAmount  string          `gorm:"type:numeric(78,0);not null"`
	CoverageCapUSD decimal.Decimal `gorm:"type:numeric(78,6);not null"`
	DeductibleBps  int             `gorm:"not null"`
	TermDays       int             `gorm:"not null"`
	StartAt        int64           `gorm:"not null"`
	ActiveAt       int64           `gorm:"not null"`
	EndAt          int64           `gorm:"not null"`
	ClaimedUpTo    int64           `gorm:"default:0"`
	Nonce          int64           `gorm:"default:0"`
	Status         string          `gorm:"index;not null"`
	Metadata       datatypes.JSONMap
	NFTTokenID     string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (PolicyModel) TableName() string { return "policies" }

type AnchorModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	RiskID      string `gorm:"uniqueIndex:ux_anchors_risk_kind;not null"`
	AnchorType  string `gorm:"uniqueIndex:ux_anchors_risk_kind;not null"`
	Timestamp   int64  `gorm:"not null"`
	TwapE18     string `gorm:"type:numeric(78,0);not null"`
	SnapshotCID string `gorm:"not null"`
	TxHash      *string
	CreatedAt   time.Time `gorm:"not null"`
}

func (AnchorModel) TableName() string { return "anchors" }

type LiquidationModel struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	RiskID        string `gorm:"uniqueIndex:ux_liquidations_risk_liq;not null"`
	LiquidationID string `gorm:"uniqueIndex:ux_liquidations_risk_liq;not null"`
	UserAddress   string `gorm:"not null"`
	Timestamp     int64  `gorm:"not null"`
	TwapE18       string `gorm:"type:numeric(78,0);not null"`
	HFBeforeE4    int64  `gorm:"column:hf_before_e4;not null"`
	HFAfterE4     int64  `gorm:"column:hf_after_e4;not null"`
	SnapshotCID   string `gorm:"not null"`
	TxHash        *string
	CreatedAt     time.Time `gorm:"not null"`
}

func (LiquidationModel) TableName() string { return "liquidations" }

type ClaimModel struct {
	ID        string          `gorm:"primaryKey"`
	PolicyID  string          `gorm:"index;not null"`
	Product   string          `gorm:"not null"`
	Status    string          `gorm:"index;not null"`
	Payout    decimal.Decimal `gorm:"type:numeric(78,6);not null"`
	Payload   datatypes.JSONMap
	Signature *string
	ExpiresAt *time.Time
	TxHash    *string
	CreatedAt time.Time `gorm:"not null"`
}

func (ClaimModel) TableName() string { return "claims" }

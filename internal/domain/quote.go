package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PoolState string

const (
	PoolStateGreen  PoolState = "Green"
	PoolStateYellow PoolState = "Yellow"
	PoolStateRed    PoolState = "Red"
)

type PoolMetrics struct {
	TWAP         *decimal.Decimal
	ReserveRatio *float64
	UpdatedAt    *time.Time
}

type PoolSummary struct {
	PoolID  string
	ChainID uint64
	Name    string
	Address string
	RiskID  string
	State   PoolState
	Metrics PoolMetrics
}

type PoolListFilter struct {
	State   PoolState
	ChainID uint64
}

// LendingParams carries the risk inputs of an AAVE_DLP quote. LTV and
// HealthFactor are telemetry ratios, optional because the oracle may not
// have fresh readings for the position class.
type LendingParams struct {
	ChainID          uint32
	LendingPool      string
	CollateralAsset  string
	InsuredAmountUSD decimal.Decimal
	LTV              *float64
	HealthFactor     *float64
	CoverageRatioBps *int
	MaxPayoutBps     *int
}

type QuoteRequest struct {
	Product  ProductType
	TermDays TermDays

	// DEPEG_LP
	PoolID    string
	InsuredLP decimal.Decimal

	// AAVE_DLP
	Lending *LendingParams
}

type QuoteResponse struct {
	Product        ProductType
	PremiumUSD     decimal.Decimal
	CoverageCapUSD decimal.Decimal
	DeductibleBps  int
	CliffHours     int
	Breakdown      map[string]any
}

type ReserveOverview struct {
	NAVUSD                decimal.Decimal
	CashRatio             decimal.Decimal
	PendingClaimsUSD      decimal.Decimal
	PendingRedemptionsUSD decimal.Decimal
	PricePerShare         decimal.Decimal
	UpdatedAt             time.Time
}

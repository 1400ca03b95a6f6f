package usecase

import (
	"context"
	"log"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"

	"github.com/shopspring/decimal"
)

// ReserveService reads the reserve pool's aggregate figures. All on-chain
// values are 6-decimal USDC atomics.
type ReserveService struct {
	gateway ContractGateway
	now     Clock
}

func NewReserveService(gateway ContractGateway) *ReserveService {
	return &ReserveService{gateway: gateway, now: time.Now}
}

func (s *ReserveService) Overview(ctx context.Context) (domain.ReserveOverview, error) {
	overview := domain.ReserveOverview{
		CashRatio:     decimal.NewFromInt(1),
		PricePerShare: decimal.NewFromInt(1),
		UpdatedAt:     s.now().UTC(),
	}
	if s.gateway == nil {
		return overview, nil
	}

	nav, claims, redemptions, err := s.gateway.ReserveTotals(ctx)
	if err != nil {
		log.Printf("reserve totals unavailable, serving zero overview: %v", err)
		overview.CashRatio = decimal.Zero
		return overview, nil
	}

	overview.NAVUSD = decimal.NewFromBigInt(nav, -6)
	overview.PendingClaimsUSD = decimal.NewFromBigInt(claims, -6)
	overview.PendingRedemptionsUSD = decimal.NewFromBigInt(redemptions, -6)
	overview.CashRatio = cashRatio(overview.NAVUSD, overview.PendingClaimsUSD, overview.PendingRedemptionsUSD)
	return overview, nil
}

// cashRatio is the share of NAV not spoken for by pending claims and
// redemptions, floored at zero.
func cashRatio(nav, claims, redemptions decimal.Decimal) decimal.Decimal {
	if nav.Sign() <= 0 {
		return decimal.Zero
	}
	ratio := decimal.NewFromInt(1).Sub(claims.Add(redemptions).Div(nav))
	if ratio.Sign() < 0 {
		return decimal.Zero
	}
	return ratio
}

package usecase

import (
	"context"

	"github.com/craterface77/liquidity-guard-be/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	deductibleBps = 500
	cliffHours    = 24
)

var termRates = map[domain.TermDays]decimal.Decimal{
	domain.Term10: decimal.RequireFromString("0.01"),
	domain.Term20: decimal.RequireFromString("0.015"),
	domain.Term30: decimal.RequireFromString("0.02"),
}

// QuoteEngine prices coverage. Missing pool telemetry never fails a quote;
// it prices conservatively instead.
type QuoteEngine struct {
	pools *PoolService
}

func NewQuoteEngine(pools *PoolService) *QuoteEngine {
	return &QuoteEngine{pools: pools}
}

func (e *QuoteEngine) Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	if !req.Product.Valid() {
		return domain.QuoteResponse{}, domain.Validation("INVALID_PRODUCT", "unknown product")
	}
	if !req.TermDays.Valid() {
		return domain.QuoteResponse{}, domain.Validation("INVALID_TERM", "termDays must be 10, 20 or 30")
	}
	if req.Product == domain.ProductDepegLP {
		return e.quoteDepegLP(ctx, req), nil
	}
	return e.quoteAaveDLP(req)
}

func (e *QuoteEngine) quoteDepegLP(ctx context.Context, req domain.QuoteRequest) domain.QuoteResponse {
	pool := e.pools.GetByID(ctx, req.PoolID)

	twap := decimal.NewFromInt(1)
	if pool != nil && pool.Metrics.TWAP != nil {
		twap = *pool.Metrics.TWAP
	}
	baseValueUSD := req.InsuredLP.Mul(twap)
	rate := termRates[req.TermDays]
	stress := stressMultiplier(pool)

	premium := baseValueUSD.Mul(rate).Mul(stress).Round(2)
	coverageCap := baseValueUSD.Mul(decimal.RequireFromString("0.9")).Round(2)

	return domain.QuoteResponse{
		Product:        req.Product,
		PremiumUSD:     premium,
		CoverageCapUSD: coverageCap,
		DeductibleBps:  deductibleBps,
		CliffHours:     cliffHours,
		Breakdown: map[string]any{
			"termRate":         rate.String(),
			"stressMultiplier": stress.String(),
			"baseValueUSD":     baseValueUSD.String(),
		},
	}
}

// stressMultiplier prices pool health: unknown pools carry a small unknown
// premium, stressed states a larger one, and otherwise the reserve ratio
// decides.
func stressMultiplier(pool *domain.PoolSummary) decimal.Decimal {
	if pool == nil {
		return decimal.RequireFromString("1.1")
	}
	switch pool.State {
	case domain.PoolStateYellow:
		return decimal.RequireFromString("1.25")
	case domain.PoolStateRed:
		return decimal.RequireFromString("1.4")
	}
	reserveRatio := 1.0
	if pool.Metrics.ReserveRatio != nil {
		reserveRatio = *pool.Metrics.ReserveRatio
	}
	switch {
	case reserveRatio < 0.3:
		return decimal.RequireFromString("1.35")
	case reserveRatio < 0.5:
		return decimal.RequireFromString("1.2")
	default:
		return decimal.NewFromInt(1)
	}
}

func (e *QuoteEngine) quoteAaveDLP(req domain.QuoteRequest) (domain.QuoteResponse, error) {
	if req.Lending == nil {
		return domain.QuoteResponse{}, domain.Validation("INVALID_PARAMS", "lending parameters are required for AAVE_DLP")
	}
	params := req.Lending
	rate := termRates[req.TermDays]

	ltv := 0.7
	if params.LTV != nil {
		ltv = *params.LTV
	}
	healthFactor := 1.2
	if params.HealthFactor != nil {
		healthFactor = *params.HealthFactor
	}

	ltvStress := decimal.NewFromInt(1)
	if ltv > 0.7 {
		ltvStress = decimal.NewFromInt(1).Add(
			decimal.NewFromFloat(ltv - 0.7).Mul(decimal.RequireFromString("1.5")))
	}
	hfStress := decimal.NewFromInt(1)
	if healthFactor < 1.3 {
		hfStress = decimal.RequireFromString("1.2")
	}
	riskMultiplier := ltvStress.Mul(hfStress).Round(3)

	premium := params.InsuredAmountUSD.Mul(rate).Mul(riskMultiplier).Round(2)
	coverageCap := params.InsuredAmountUSD.Mul(decimal.RequireFromString("0.1")).Round(2)

	return domain.QuoteResponse{
		Product:        req.Product,
		PremiumUSD:     premium,
		CoverageCapUSD: coverageCap,
		DeductibleBps:  deductibleBps,
		CliffHours:     cliffHours,
		Breakdown: map[string]any{
			"termRate":         rate.String(),
			"riskMultiplier":   riskMultiplier.String(),
			"insuredAmountUSD": params.InsuredAmountUSD.String(),
		},
	}, nil
}

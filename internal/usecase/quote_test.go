package usecase

import (
	"context"
	"testing"

	"github.com/craterface77/liquidity-guard-be/internal/domain"

	"github.com/shopspring/decimal"
)

func newTestQuoteEngine() *QuoteEngine {
	return NewQuoteEngine(NewPoolService(nil, 1))
}

func TestQuote_DepegLP_HealthyPool(t *testing.T) {
	engine := newTestQuoteEngine()

	quote, err := engine.Quote(context.Background(), domain.QuoteRequest{
		Product:   domain.ProductDepegLP,
		TermDays:  domain.Term10,
		PoolID:    "curve-pyusd-usdc",
		InsuredLP: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got := quote.PremiumUSD.String(); got != "10" {
		t.Fatalf("expected premium 10, got %s", got)
	}
	if got := quote.CoverageCapUSD.String(); got != "900" {
		t.Fatalf("expected coverage cap 900, got %s", got)
	}
	if quote.DeductibleBps != 500 {
		t.Fatalf("expected deductible 500 bps, got %d", quote.DeductibleBps)
	}
	if quote.CliffHours != 24 {
		t.Fatalf("expected 24h cliff, got %d", quote.CliffHours)
	}
	if quote.Breakdown["stressMultiplier"] != "1" {
		t.Fatalf("expected healthy stress multiplier 1, got %v", quote.Breakdown["stressMultiplier"])
	}
}

func TestQuote_DepegLP_StressedPoolCostsMore(t *testing.T) {
	engine := newTestQuoteEngine()
	ctx := context.Background()

	healthy, err := engine.Quote(ctx, domain.QuoteRequest{
		Product:   domain.ProductDepegLP,
		TermDays:  domain.Term20,
		PoolID:    "curve-pyusd-usdc",
		InsuredLP: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("healthy quote: %v", err)
	}
	stressed, err := engine.Quote(ctx, domain.QuoteRequest{
		Product:   domain.ProductDepegLP,
		TermDays:  domain.Term20,
		PoolID:    "curve-usdt-usdc",
		InsuredLP: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("stressed quote: %v", err)
	}
	if !stressed.PremiumUSD.GreaterThan(healthy.PremiumUSD) {
		t.Fatalf("stressed pool should price above healthy: %s <= %s", stressed.PremiumUSD, healthy.PremiumUSD)
	}
	// Yellow state, twap 0.998: 998 * 0.015 * 1.25
	if got := stressed.PremiumUSD.String(); got != "18.71" {
		t.Fatalf("expected stressed premium 18.71, got %s", got)
	}
}

func TestQuote_DepegLP_UnknownPoolCarriesPremium(t *testing.T) {
	engine := newTestQuoteEngine()

	quote, err := engine.Quote(context.Background(), domain.QuoteRequest{
		Product:   domain.ProductDepegLP,
		TermDays:  domain.Term10,
		PoolID:    "no-such-pool",
		InsuredLP: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got := quote.PremiumUSD.String(); got != "11" {
		t.Fatalf("expected unknown-pool premium 11, got %s", got)
	}
}

func TestQuote_TermMonotonicity(t *testing.T) {
	engine := newTestQuoteEngine()
	ctx := context.Background()

	prev := decimal.Zero
	for _, term := range []domain.TermDays{domain.Term10, domain.Term20, domain.Term30} {
		quote, err := engine.Quote(ctx, domain.QuoteRequest{
			Product:   domain.ProductDepegLP,
			TermDays:  term,
			PoolID:    "curve-pyusd-usdc",
			InsuredLP: decimal.NewFromInt(5000),
		})
		if err != nil {
			t.Fatalf("term %d: %v", term, err)
		}
		if !quote.PremiumUSD.GreaterThan(prev) {
			t.Fatalf("premium should grow with term: %s at %d days", quote.PremiumUSD, term)
		}
		prev = quote.PremiumUSD
	}
}

func TestQuote_AaveDLP_WorkedExample(t *testing.T) {
	engine := newTestQuoteEngine()
	ltv := 0.8
	hf := 1.1

	quote, err := engine.Quote(context.Background(), domain.QuoteRequest{
		Product:  domain.ProductAaveDLP,
		TermDays: domain.Term20,
		Lending: &domain.LendingParams{
			ChainID:          1,
			LendingPool:      "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2",
			CollateralAsset:  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			InsuredAmountUSD: decimal.NewFromInt(10000),
			LTV:              &ltv,
			HealthFactor:     &hf,
		},
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// ltv stress 1.15 * hf stress 1.2 = 1.38
	if got := quote.Breakdown["riskMultiplier"]; got != "1.38" {
		t.Fatalf("expected risk multiplier 1.38, got %v", got)
	}
	if got := quote.PremiumUSD.String(); got != "207" {
		t.Fatalf("expected premium 207, got %s", got)
	}
	if got := quote.CoverageCapUSD.String(); got != "1000" {
		t.Fatalf("expected coverage cap 1000, got %s", got)
	}
}

func TestQuote_AaveDLP_DefaultsWhenTelemetryMissing(t *testing.T) {
	engine := newTestQuoteEngine()

	quote, err := engine.Quote(context.Background(), domain.QuoteRequest{
		Product:  domain.ProductAaveDLP,
		TermDays: domain.Term10,
		Lending: &domain.LendingParams{
			InsuredAmountUSD: decimal.NewFromInt(1000),
		},
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// default ltv 0.7 (no stress), default hf 1.2 (< 1.3 stress applies)
	if got := quote.Breakdown["riskMultiplier"]; got != "1.2" {
		t.Fatalf("expected default risk multiplier 1.2, got %v", got)
	}
	if got := quote.PremiumUSD.String(); got != "12" {
		t.Fatalf("expected premium 12, got %s", got)
	}
}

func TestQuote_RejectsBadInputs(t *testing.T) {
	engine := newTestQuoteEngine()
	ctx := context.Background()

	_, err := engine.Quote(ctx, domain.QuoteRequest{Product: "WEATHER", TermDays: domain.Term10})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for unknown product, got %v", err)
	}
	_, err = engine.Quote(ctx, domain.QuoteRequest{Product: domain.ProductDepegLP, TermDays: 15})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for 15-day term, got %v", err)
	}
	_, err = engine.Quote(ctx, domain.QuoteRequest{Product: domain.ProductAaveDLP, TermDays: domain.Term10})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for missing lending params, got %v", err)
	}
}
